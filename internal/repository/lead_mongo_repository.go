package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/spec-kit/lead-manager/internal/domain"
)

// LeadCollection is the MongoDB collection holding lead documents.
const LeadCollection = "leads"

type leadDocument struct {
	ID                     bson.ObjectID `bson:"_id,omitempty"`
	Name                   string        `bson:"name"`
	CompanyName            string        `bson:"companyName"`
	Website                string        `bson:"website,omitempty"`
	Email                  string        `bson:"email,omitempty"`
	PhoneNumber            string        `bson:"phoneNumber,omitempty"`
	Address                string        `bson:"address,omitempty"`
	Status                 string        `bson:"status"`
	Category               string        `bson:"category"`
	AdditionalRequirements string        `bson:"additionalRequirements,omitempty"`
	ContactedBy            *string       `bson:"contactedBy"`
	CreatedAt              time.Time     `bson:"createdAt"`
	UpdatedAt              time.Time     `bson:"updatedAt"`
}

type mongoLeadRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoLeadRepository builds a repository over the leads collection of db.
func NewMongoLeadRepository(client *mongo.Client, db *mongo.Database) LeadRepository {
	return &mongoLeadRepository{client: client, coll: db.Collection(LeadCollection)}
}

func (r *mongoLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	doc := toDocument(lead)
	doc.ID = bson.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	lead.ID = doc.ID.Hex()
	return nil
}

// InsertMany inserts with pre-allocated ids so a failed batch can be removed again.
func (r *mongoLeadRepository) InsertMany(ctx context.Context, leads []domain.Lead) ([]domain.Lead, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	ids := make([]bson.ObjectID, len(leads))
	docs := make([]any, len(leads))
	inserted := make([]domain.Lead, len(leads))
	for i := range leads {
		doc := toDocument(&leads[i])
		doc.ID = bson.NewObjectID()
		ids[i] = doc.ID
		docs[i] = doc
		inserted[i] = leads[i].Clone()
		inserted[i].ID = doc.ID.Hex()
	}

	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, delErr := r.coll.DeleteMany(cleanupCtx, bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
			return nil, fmt.Errorf("insert batch: %w (rollback failed: %v)", err, delErr)
		}
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	return inserted, nil
}

func (r *mongoLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc leadDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	lead := fromDocument(doc)
	return &lead, nil
}

func (r *mongoLeadRepository) List(ctx context.Context) ([]domain.Lead, error) {
	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var docs []leadDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.Lead, 0, len(docs))
	for _, doc := range docs {
		result = append(result, fromDocument(doc))
	}
	return result, nil
}

func (r *mongoLeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	oid, err := bson.ObjectIDFromHex(lead.ID)
	if err != nil {
		return ErrNotFound
	}
	doc := toDocument(lead)
	doc.ID = oid
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoLeadRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoLeadRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return errors.New("mongo client not configured")
	}
	return r.client.Ping(ctx, nil)
}

func toDocument(lead *domain.Lead) leadDocument {
	return leadDocument{
		Name:                   lead.Name,
		CompanyName:            lead.CompanyName,
		Website:                lead.Website,
		Email:                  lead.Email,
		PhoneNumber:            lead.PhoneNumber,
		Address:                lead.Address,
		Status:                 string(lead.Status),
		Category:               lead.Category,
		AdditionalRequirements: lead.AdditionalRequirements,
		ContactedBy:            staffArg(lead.ContactedBy),
		CreatedAt:              lead.CreatedAt,
		UpdatedAt:              lead.UpdatedAt,
	}
}

func fromDocument(doc leadDocument) domain.Lead {
	lead := domain.Lead{
		ID:                     doc.ID.Hex(),
		Name:                   doc.Name,
		CompanyName:            doc.CompanyName,
		Website:                doc.Website,
		Email:                  doc.Email,
		PhoneNumber:            doc.PhoneNumber,
		Address:                doc.Address,
		Status:                 domain.LeadStatus(doc.Status),
		Category:               doc.Category,
		AdditionalRequirements: doc.AdditionalRequirements,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}
	if doc.ContactedBy != nil {
		member := domain.StaffMember(*doc.ContactedBy)
		lead.ContactedBy = &member
	}
	return lead
}
