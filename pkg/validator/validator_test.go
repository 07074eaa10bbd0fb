package validator_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ztruyen/ztc-auth/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("no failures", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("email", "reader@example.com"),
			validator.MaxLen("email", "reader@example.com", 255),
		)
		assert.NoError(t, err)
	})

	t.Run("collects every failure", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("email", "  "),
			validator.ValidEmail("email", "  "),
			validator.MinLen("password", "abc", 6),
		)
		require.Error(t, err)

		verrs := validator.ExtractValidationErrors(err)
		require.Len(t, verrs, 3)
		assert.Equal(t, []string{"email", "password"}, verrs.Fields())
		assert.Equal(t, []string{"field is required", "must be a valid email address"}, verrs.Get("email"))
		assert.True(t, verrs.Has("password"))
		assert.False(t, verrs.Has("name"))
		assert.Equal(t, map[string][]string{
			"email":    {"field is required", "must be a valid email address"},
			"password": {"must be at least 6 characters long"},
		}, verrs.Map())
		assert.Equal(t, "validation failed: email: field is required; email: must be a valid email address; password: must be at least 6 characters long", err.Error())
	})

	t.Run("wrapped errors are detected", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("register: %w", validator.Apply(validator.Required("name", "")))
		assert.True(t, validator.IsValidationError(err))
		assert.Len(t, validator.ExtractValidationErrors(err), 1)

		assert.False(t, validator.IsValidationError(errors.New("boom")))
		assert.Nil(t, validator.ExtractValidationErrors(nil))
	})

	t.Run("empty collection message", func(t *testing.T) {
		t.Parallel()
		var verrs validator.ValidationErrors
		assert.Equal(t, "validation failed", verrs.Error())
		assert.Nil(t, verrs.Map())
		verrs.Add(validator.ValidationError{Field: "age", Message: "bad"})
		assert.False(t, verrs.IsEmpty())
	})
}

func TestIf(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.If(false, validator.Between("age", 5, 10, 100))))

	err := validator.Apply(validator.If(true, validator.Between("age", 5, 10, 100)))
	verrs := validator.ExtractValidationErrors(err)
	require.Len(t, verrs, 1)
	assert.Equal(t, "between", verrs[0].Code)
	assert.Equal(t, "must be between 10 and 100", verrs[0].Message)
}

func TestRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule validator.Rule
		ok   bool
	}{
		{"required", validator.Required("f", "x"), true},
		{"required blank", validator.Required("f", " \t"), false},
		{"min len runes", validator.MinLen("f", "mật khẩu", 8), true},
		{"min len short", validator.MinLen("f", "abcde", 6), false},
		{"max len", validator.MaxLen("f", strings.Repeat("a", 100), 100), true},
		{"max len over", validator.MaxLen("f", strings.Repeat("a", 101), 100), false},
		{"between low edge", validator.Between("f", 10, 10, 100), true},
		{"between high edge", validator.Between("f", 100, 10, 100), true},
		{"between over", validator.Between("f", 101, 10, 100), false},
		{"in list", validator.InList("f", "lgbt", []string{"male", "female", "lgbt"}), true},
		{"not in list", validator.InList("f", "other", []string{"male", "female", "lgbt"}), false},
		{"email", validator.ValidEmail("f", "reader@ztruyen.io"), true},
		{"email no domain dot", validator.ValidEmail("f", "reader@localhost"), false},
		{"email display name", validator.ValidEmail("f", "Reader <reader@ztruyen.io>"), false},
		{"email empty label", validator.ValidEmail("f", "reader@ztruyen..io"), false},
		{"email missing at", validator.ValidEmail("f", "reader.ztruyen.io"), false},
		{"date", validator.ValidDate("f", "2001-02-28"), true},
		{"date invalid day", validator.ValidDate("f", "2001-02-30"), false},
		{"date wrong layout", validator.ValidDate("f", "28/02/2001"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.ok, tt.rule.Check())
		})
	}
}

func TestPastDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, validator.PastDate("birthday", "2024-06-01", now).Check())
	assert.False(t, validator.PastDate("birthday", "2024-06-02", now).Check())
	assert.True(t, validator.PastDate("birthday", "not-a-date", now).Check())
}
