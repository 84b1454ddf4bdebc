package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/linkpulse/linkpulse/internal/infrastructure/db"
	"github.com/linkpulse/linkpulse/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LinksRepository persists link records in the "links" collection. Token
// uniqueness is enforced by the unique index, never by check-then-insert.
type LinksRepository struct {
	coll *mongo.Collection
}

type linkDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Token       string             `bson:"token"`
	Destination string             `bson:"destination"`
	OwnerID     string             `bson:"ownerId"`
	Remark      string             `bson:"remark"`
	CreatedAt   time.Time          `bson:"createdAt"`
	ExpiresAt   *time.Time         `bson:"expiresAt,omitempty"`
	Creation    creationDoc        `bson:"creation"`
}

type creationDoc struct {
	IP      string `bson:"ip,omitempty"`
	Device  string `bson:"device,omitempty"`
	OS      string `bson:"os,omitempty"`
	Browser string `bson:"browser,omitempty"`
}

func NewLinksRepository(m *db.Mongo) (*LinksRepository, error) {
	repo := &LinksRepository{coll: m.Collection("links")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_token"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("owner_createdAt"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *LinksRepository) Insert(ctx context.Context, link *links.Link) error {
	doc := linkDoc{
		Token:       link.Token,
		Destination: link.Destination,
		OwnerID:     link.OwnerID,
		Remark:      link.Remark,
		CreatedAt:   link.CreatedAt.UTC(),
		ExpiresAt:   link.ExpiresAt,
		Creation: creationDoc{
			IP:      link.Creation.IP,
			Device:  link.Creation.Device,
			OS:      link.Creation.OS,
			Browser: link.Creation.Browser,
		},
	}

	_, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		return links.ErrTokenTaken
	}

	return err
}

func (r *LinksRepository) FindByToken(ctx context.Context, token string) (*links.Link, error) {
	var doc linkDoc
	err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}

	return nil, err
}

func (r *LinksRepository) FindByOwner(ctx context.Context, ownerID string) ([]*links.Link, error) {
	cur, err := r.coll.Find(ctx, bson.M{"ownerId": ownerID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*links.Link, 0)
	for cur.Next(ctx) {
		var doc linkDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, mapLinkDoc(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *LinksRepository) UpdateDestination(ctx context.Context, token, destination string) (*links.Link, error) {
	var doc linkDoc
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"token": token},
		bson.M{"$set": bson.M{"destination": destination}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}

	return nil, err
}

func (r *LinksRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"token": token})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func mapLinkDoc(doc linkDoc) *links.Link {
	return &links.Link{
		Token:       doc.Token,
		Destination: doc.Destination,
		OwnerID:     doc.OwnerID,
		Remark:      doc.Remark,
		CreatedAt:   doc.CreatedAt,
		ExpiresAt:   doc.ExpiresAt,
		Creation: links.CreationContext{
			IP:      doc.Creation.IP,
			Device:  doc.Creation.Device,
			OS:      doc.Creation.OS,
			Browser: doc.Creation.Browser,
		},
	}
}
