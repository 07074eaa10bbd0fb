package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStorage keeps accounts in the "users" collection, using the same
// document shape as the existing application: ObjectID keys, ObjectID image
// references and camelCase fields.
//
// Account ids are ObjectIDs wrapped in a uuid by accountIDFromObjectID, so
// tokens and callers keep a single id type across drivers.
type MongoStorage struct {
	users *mongo.Collection
	now   func() time.Time
}

func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{users: db.Collection("users"), now: time.Now}
}

// objectIDTag fills the last four bytes of a uuid that wraps an ObjectID.
var objectIDTag = [4]byte{'o', 'i', 'd', 0}

func accountIDFromObjectID(oid bson.ObjectID) uuid.UUID {
	var id uuid.UUID
	copy(id[:12], oid[:])
	copy(id[12:], objectIDTag[:])
	return id
}

// objectIDFromAccountID reverses accountIDFromObjectID. It reports false for
// ids that were not issued by MongoStorage.
func objectIDFromAccountID(id uuid.UUID) (bson.ObjectID, bool) {
	if [4]byte(id[12:]) != objectIDTag {
		return bson.ObjectID{}, false
	}
	var oid bson.ObjectID
	copy(oid[:], id[:12])
	return oid, true
}

// imageRef parses a hex image id. Anything else is dropped.
func imageRef(hex string) *bson.ObjectID {
	oid, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &oid
}

func imageHex(oid *bson.ObjectID) string {
	if oid == nil || oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

type userDocument struct {
	ID               bson.ObjectID  `bson:"_id"`
	Email            string         `bson:"email"`
	Password         string         `bson:"password,omitempty"`
	Name             string         `bson:"name"`
	AvatarURL        string         `bson:"avatar_url,omitempty"`
	Avatar           *bson.ObjectID `bson:"avatar,omitempty"`
	Cover            *bson.ObjectID `bson:"cover,omitempty"`
	AvatarFrame      *bson.ObjectID `bson:"avatar_frame,omitempty"`
	Bio              string         `bson:"bio,omitempty"`
	Age              int            `bson:"age,omitempty"`
	Gender           string         `bson:"gender,omitempty"`
	Birthday         *time.Time     `bson:"birthday,omitempty"`
	Role             string         `bson:"role"`
	Provider         string         `bson:"provider"`
	ResetToken       string         `bson:"resetToken,omitempty"`
	ResetTokenExpiry *time.Time     `bson:"resetTokenExpiry,omitempty"`
	RefreshToken     string         `bson:"refreshToken,omitempty"`
	IsDeleted        bool           `bson:"isDeleted"`
	DeletedAt        *time.Time     `bson:"deletedAt,omitempty"`
	CreatedAt        time.Time      `bson:"createdAt"`
	UpdatedAt        time.Time      `bson:"updatedAt"`
}

func toDocument(oid bson.ObjectID, a *Account) userDocument {
	d := userDocument{
		ID:           oid,
		Email:        a.Email,
		Password:     a.PasswordHash,
		Name:         a.Name,
		AvatarURL:    a.AvatarURL,
		Avatar:       imageRef(a.AvatarID),
		Cover:        imageRef(a.CoverID),
		AvatarFrame:  imageRef(a.AvatarFrameID),
		Bio:          a.Bio,
		Age:          a.Age,
		Gender:       a.Gender,
		Birthday:     a.Birthday,
		Role:         string(a.Role),
		Provider:     string(a.Provider),
		ResetToken:   a.ResetTokenHash,
		RefreshToken: a.RefreshTokenRef,
		IsDeleted:    a.IsDeleted,
		DeletedAt:    a.DeletedAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if !a.ResetTokenExpiry.IsZero() {
		exp := a.ResetTokenExpiry
		d.ResetTokenExpiry = &exp
	}
	return d
}

// account converts a stored document. Documents written before provider and
// role were recorded are local users.
func (d userDocument) account() *Account {
	a := &Account{
		ID:              accountIDFromObjectID(d.ID),
		Email:           d.Email,
		PasswordHash:    d.Password,
		Provider:        Provider(d.Provider),
		Role:            Role(d.Role),
		RefreshTokenRef: d.RefreshToken,
		ResetTokenHash:  d.ResetToken,
		Name:            d.Name,
		AvatarURL:       d.AvatarURL,
		AvatarID:        imageHex(d.Avatar),
		CoverID:         imageHex(d.Cover),
		AvatarFrameID:   imageHex(d.AvatarFrame),
		Bio:             d.Bio,
		Age:             d.Age,
		Gender:          d.Gender,
		Birthday:        d.Birthday,
		IsDeleted:       d.IsDeleted,
		DeletedAt:       d.DeletedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if a.Provider == "" {
		a.Provider = ProviderLocal
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if d.ResetTokenExpiry != nil {
		a.ResetTokenExpiry = *d.ResetTokenExpiry
	}
	return a
}

// EnsureIndexes creates the unique email index and the sparse reset token
// index. It is safe to call on every start.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "resetToken", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("reset_token"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

func (s *MongoStorage) CreateAccount(ctx context.Context, acc *Account) error {
	oid := bson.NewObjectID()
	if acc.ID != uuid.Nil {
		var ok bool
		if oid, ok = objectIDFromAccountID(acc.ID); !ok {
			return fmt.Errorf("account id %s does not wrap an object id", acc.ID)
		}
	}
	acc.ID = accountIDFromObjectID(oid)
	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, toDocument(oid, acc)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *MongoStorage) AccountByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	oid, ok := objectIDFromAccountID(id)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *MongoStorage) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *MongoStorage) SetRefreshRef(ctx context.Context, id uuid.UUID, ref string) error {
	update := s.touch(bson.D{{Key: "refreshToken", Value: ref}})
	if ref == "" {
		update = s.touch(nil, "refreshToken")
	}
	return s.updateByID(ctx, id, nil, update, ErrAccountNotFound)
}

func (s *MongoStorage) SwapRefreshRef(ctx context.Context, id uuid.UUID, expected, next string) error {
	if expected == "" {
		return ErrRefMismatch
	}
	return s.updateByID(ctx, id, bson.D{{Key: "refreshToken", Value: expected}},
		s.touch(bson.D{{Key: "refreshToken", Value: next}}), ErrRefMismatch)
}

func (s *MongoStorage) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiry time.Time) error {
	update := s.touch(bson.D{
		{Key: "resetToken", Value: hash},
		{Key: "resetTokenExpiry", Value: expiry.UTC()},
	})
	if hash == "" {
		update = s.touch(nil, "resetToken", "resetTokenExpiry")
	}
	return s.updateByID(ctx, id, nil, update, ErrAccountNotFound)
}

func (s *MongoStorage) ClearResetToken(ctx context.Context, id uuid.UUID, hash string) error {
	if hash == "" {
		return nil
	}
	return s.updateByID(ctx, id, bson.D{{Key: "resetToken", Value: hash}},
		s.touch(nil, "resetToken", "resetTokenExpiry"), nil)
}

func (s *MongoStorage) ConsumeResetToken(ctx context.Context, hash string, now time.Time, passwordHash string) (*Account, error) {
	if hash == "" {
		return nil, ErrAccountNotFound
	}
	filter := bson.D{
		{Key: "resetToken", Value: hash},
		{Key: "resetTokenExpiry", Value: bson.D{{Key: "$gt", Value: now.UTC()}}},
		{Key: "isDeleted", Value: bson.D{{Key: "$ne", Value: true}}},
	}
	update := s.touch(bson.D{{Key: "password", Value: passwordHash}}, "resetToken", "resetTokenExpiry", "refreshToken")

	var doc userDocument
	err := s.users.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return doc.account(), nil
}

// SoftDelete marks an account deleted and ends its session.
func (s *MongoStorage) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := s.now().UTC()
	update := s.touch(bson.D{
		{Key: "isDeleted", Value: true},
		{Key: "deletedAt", Value: now},
	}, "refreshToken")
	return s.updateByID(ctx, id, nil, update, ErrAccountNotFound)
}

func (s *MongoStorage) findOne(ctx context.Context, filter bson.D) (*Account, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return doc.account(), nil
}

// updateByID applies update to the account id when it also matches extra.
// Ids that do not wrap an ObjectID match nothing.
func (s *MongoStorage) updateByID(ctx context.Context, id uuid.UUID, extra, update bson.D, notMatched error) error {
	oid, ok := objectIDFromAccountID(id)
	if !ok {
		return notMatched
	}
	filter := append(bson.D{{Key: "_id", Value: oid}}, extra...)
	return s.updateOne(ctx, filter, update, notMatched)
}

// updateOne applies update and returns notMatched when filter selects no
// document.
func (s *MongoStorage) updateOne(ctx context.Context, filter, update bson.D, notMatched error) error {
	res, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return notMatched
	}
	return nil
}

// touch builds an update that sets fields plus updatedAt and unsets the
// named fields.
func (s *MongoStorage) touch(set bson.D, unset ...string) bson.D {
	set = append(set, bson.E{Key: "updatedAt", Value: s.now().UTC()})
	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		fields := bson.D{}
		for _, f := range unset {
			fields = append(fields, bson.E{Key: f, Value: ""})
		}
		update = append(update, bson.E{Key: "$unset", Value: fields})
	}
	return update
}

var _ Storage = (*MongoStorage)(nil)
