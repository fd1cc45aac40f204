package database

import (
	"context"
	"errors"
	"fmt"
	"time"
	"wedlink/entity"
	"wedlink/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionUsers       = "users"
	collectionInvitations = "invitations"
	collectionRequests    = "approval_requests"
)

type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

// NewMongoClient connects and pings the server; it returns nil when mongo is disabled.
func NewMongoClient(ctx context.Context, conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	m := NewMongoDatabase(client.Database(conf.Mongo.Database))
	m.client = client
	return m, nil
}

// NewMongoDatabase wraps an already connected database.
func NewMongoDatabase(db *mongo.Database) *MongoDB {
	return &MongoDB{
		client: db.Client(),
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique slug index and the request history index.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(collectionInvitations).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{"slug", 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{"owner_id", 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("invitation indexes: %w", err)
	}
	_, err = m.db.Collection(collectionRequests).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{"invitation_id", 1}, {"created_at", -1}}},
		{Keys: bson.D{{"status", 1}}},
	})
	if err != nil {
		return fmt.Errorf("request indexes: %w", err)
	}
	return nil
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("mongodb find: %w", err)
}

func (m *MongoDB) writeError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlugTaken
	}
	return fmt.Errorf("mongodb write: %w", err)
}

func (m *MongoDB) CreateInvitation(ctx context.Context, inv *entity.Invitation) error {
	now := m.now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	_, err := m.db.Collection(collectionInvitations).InsertOne(ctx, inv)
	if err != nil {
		return m.writeError(err)
	}
	return nil
}

func (m *MongoDB) GetInvitation(ctx context.Context, id string) (*entity.Invitation, error) {
	var record invitationRecord
	err := m.db.Collection(collectionInvitations).FindOne(ctx, bson.D{{"_id", id}}).Decode(&record)
	if err != nil {
		return nil, m.findError(err)
	}
	return record.decode()
}

func (m *MongoDB) ListInvitations(ctx context.Context, ownerID string) ([]*entity.Invitation, error) {
	opts := options.Find().SetSort(bson.D{{"created_at", -1}})
	return m.findInvitations(ctx, bson.D{{"owner_id", ownerID}}, opts)
}

// FindBySlugs returns every invitation whose stored slug equals one of slugs, ordered by id.
func (m *MongoDB) FindBySlugs(ctx context.Context, slugs []string) ([]*entity.Invitation, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{"_id", 1}})
	return m.findInvitations(ctx, bson.D{{"slug", bson.D{{"$in", slugs}}}}, opts)
}

func (m *MongoDB) findInvitations(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*entity.Invitation, error) {
	cursor, err := m.db.Collection(collectionInvitations).Find(ctx, filter, opts)
	if err != nil {
		return nil, m.findError(err)
	}
	defer cursor.Close(ctx)

	var records []invitationRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, m.findError(err)
	}
	list := make([]*entity.Invitation, 0, len(records))
	for i := range records {
		inv, err := records[i].decode()
		if err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, nil
}

// WriteInvitation applies patch and returns the stored result.
// Legacy status flags are dropped on every write.
func (m *MongoDB) WriteInvitation(ctx context.Context, id string, patch entity.InvitationPatch) (*entity.Invitation, error) {
	set := bson.D{{"updated_at", m.now()}}
	if patch.Slug != nil {
		set = append(set, bson.E{Key: "slug", Value: *patch.Slug})
	}
	if patch.Content != nil {
		set = append(set, bson.E{Key: "content", Value: *patch.Content})
	}
	if patch.Status != nil {
		set = append(set, bson.E{Key: "status", Value: *patch.Status})
	}
	if patch.Published != nil {
		set = append(set, bson.E{Key: "published", Value: *patch.Published})
	}
	update := bson.D{
		{"$set", set},
		{"$unset", bson.D{{"is_approved", ""}, {"is_requesting_approval", ""}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var record invitationRecord
	err := m.db.Collection(collectionInvitations).FindOneAndUpdate(ctx, bson.D{{"_id", id}}, update, opts).Decode(&record)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrSlugTaken
		}
		return nil, m.findError(err)
	}
	return record.decode()
}

func (m *MongoDB) DeleteInvitation(ctx context.Context, id string) error {
	res, err := m.db.Collection(collectionInvitations).DeleteOne(ctx, bson.D{{"_id", id}})
	if err != nil {
		return m.writeError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) InsertApprovalRequest(ctx context.Context, req *entity.ApprovalRequest) error {
	_, err := m.db.Collection(collectionRequests).InsertOne(ctx, req)
	if err != nil {
		return m.writeError(err)
	}
	return nil
}

func (m *MongoDB) UpdateApprovalRequest(ctx context.Context, req *entity.ApprovalRequest) error {
	res, err := m.db.Collection(collectionRequests).ReplaceOne(ctx, bson.D{{"_id", req.ID}}, req)
	if err != nil {
		return m.writeError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestApprovalRequest returns the newest request of an invitation, nil when there is none.
func (m *MongoDB) LatestApprovalRequest(ctx context.Context, invitationID string) (*entity.ApprovalRequest, error) {
	return m.findRequest(ctx, bson.D{{"invitation_id", invitationID}})
}

// OpenApprovalRequest returns the pending request of an invitation, nil when there is none.
func (m *MongoDB) OpenApprovalRequest(ctx context.Context, invitationID string) (*entity.ApprovalRequest, error) {
	return m.findRequest(ctx, bson.D{{"invitation_id", invitationID}, {"status", entity.RequestPending}})
}

func (m *MongoDB) findRequest(ctx context.Context, filter bson.D) (*entity.ApprovalRequest, error) {
	opts := options.FindOne().SetSort(bson.D{{"created_at", -1}, {"_id", -1}})
	var req entity.ApprovalRequest
	err := m.db.Collection(collectionRequests).FindOne(ctx, filter, opts).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, m.findError(err)
	}
	return &req, nil
}

// ApprovalRequests returns the history of an invitation, oldest first.
func (m *MongoDB) ApprovalRequests(ctx context.Context, invitationID string) ([]*entity.ApprovalRequest, error) {
	opts := options.Find().SetSort(bson.D{{"created_at", 1}, {"_id", 1}})
	return m.findRequests(ctx, bson.D{{"invitation_id", invitationID}}, opts)
}

// PendingApprovalRequests is the review queue, oldest first.
func (m *MongoDB) PendingApprovalRequests(ctx context.Context) ([]*entity.ApprovalRequest, error) {
	opts := options.Find().SetSort(bson.D{{"created_at", 1}, {"_id", 1}})
	return m.findRequests(ctx, bson.D{{"status", entity.RequestPending}}, opts)
}

func (m *MongoDB) findRequests(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*entity.ApprovalRequest, error) {
	cursor, err := m.db.Collection(collectionRequests).Find(ctx, filter, opts)
	if err != nil {
		return nil, m.findError(err)
	}
	defer cursor.Close(ctx)

	var list []*entity.ApprovalRequest
	if err = cursor.All(ctx, &list); err != nil {
		return nil, m.findError(err)
	}
	return list, nil
}

func (m *MongoDB) GetUser(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := m.db.Collection(collectionUsers).FindOne(ctx, bson.D{{"_id", id}}).Decode(&user)
	if err != nil {
		return nil, m.findError(err)
	}
	return &user, nil
}

// GetTelegramAdmins returns admins that receive review notifications.
func (m *MongoDB) GetTelegramAdmins(ctx context.Context) ([]*entity.User, error) {
	filter := bson.D{
		{"role", entity.RoleAdmin},
		{"telegram_id", bson.D{{"$gt", 0}}},
		{"telegram_enabled", true},
	}
	cursor, err := m.db.Collection(collectionUsers).Find(ctx, filter)
	if err != nil {
		return nil, m.findError(err)
	}
	defer cursor.Close(ctx)

	var users []*entity.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, m.findError(err)
	}
	return users, nil
}

// GetUserByTelegramId finds the admin writing to the bot.
func (m *MongoDB) GetUserByTelegramId(ctx context.Context, telegramId int64) (*entity.User, error) {
	var user entity.User
	err := m.db.Collection(collectionUsers).FindOne(ctx, bson.D{{"telegram_id", telegramId}}).Decode(&user)
	if err != nil {
		return nil, m.findError(err)
	}
	return &user, nil
}

func (m *MongoDB) SetTelegramEnabled(ctx context.Context, telegramId int64, enabled bool) error {
	filter := bson.D{{"telegram_id", telegramId}}
	update := bson.D{{"$set", bson.D{{"telegram_enabled", enabled}}}}
	res, err := m.db.Collection(collectionUsers).UpdateOne(ctx, filter, update)
	if err != nil {
		return m.writeError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
