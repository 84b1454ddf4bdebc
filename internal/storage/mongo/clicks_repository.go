package mongo

import (
	"context"
	"time"

	"github.com/linkpulse/linkpulse/internal/infrastructure/db"
	"github.com/linkpulse/linkpulse/internal/processing/analytics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ClicksRepository owns the visit log ("visits") and the per-date click
// buckets ("clicks_daily"). Buckets are mutated only through the single $inc
// upsert in RecordVisit, so a bucket's device counters always sum to its
// total.
type ClicksRepository struct {
	visits  *mongo.Collection
	buckets *mongo.Collection
}

type visitDoc struct {
	Token       string    `bson:"token"`
	Destination string    `bson:"destination"`
	OwnerID     string    `bson:"ownerId"`
	Date        string    `bson:"date"` // YYYY-MM-DD (UTC)
	Timestamp   time.Time `bson:"timestamp"`
	IP          string    `bson:"ip,omitempty"`
	Device      string    `bson:"device"`
	OS          string    `bson:"os"`
	Browser     string    `bson:"browser"`
}

type bucketDoc struct {
	Token   string                 `bson:"token"`
	Date    string                 `bson:"date"`
	Total   int64                  `bson:"total"`
	Devices analytics.DeviceClicks `bson:"devices"`
}

func NewClicksRepository(m *db.Mongo) (*ClicksRepository, error) {
	repo := &ClicksRepository{
		visits:  m.Collection("visits"),
		buckets: m.Collection("clicks_daily"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.visits.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("token_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}},
			Options: options.Index().SetName("owner"),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = repo.buckets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_token_date"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

// RecordVisit appends one visit document and bumps the matching date bucket.
// The bucket's total and device counter move in the same $inc, so they can
// never diverge from each other. The visit is written first; if the bucket
// update then fails, totals under-count (never over-count).
func (r *ClicksRepository) RecordVisit(ctx context.Context, visit analytics.Visit) error {
	doc := visitDoc{
		Token:       visit.Token,
		Destination: visit.Destination,
		OwnerID:     visit.OwnerID,
		Date:        visit.Date,
		Timestamp:   visit.Timestamp.UTC(),
		IP:          visit.IP,
		Device:      string(visit.Device),
		OS:          visit.OS,
		Browser:     visit.Browser,
	}
	if _, err := r.visits.InsertOne(ctx, doc); err != nil {
		return err
	}

	deviceField := "devices." + string(analytics.ParseDeviceClass(string(visit.Device)))
	_, err := r.buckets.UpdateOne(
		ctx,
		bson.M{"token": visit.Token, "date": visit.Date},
		bson.M{
			"$inc": bson.M{"total": 1, deviceField: 1},
			"$setOnInsert": bson.M{
				"token": visit.Token,
				"date":  visit.Date,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *ClicksRepository) BucketsByTokens(ctx context.Context, tokens []string) ([]analytics.DateClicks, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	cur, err := r.buckets.Find(
		ctx,
		bson.M{"token": bson.M{"$in": tokens}},
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []analytics.DateClicks
	for cur.Next(ctx) {
		var doc bucketDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, analytics.DateClicks{
			Date:    doc.Date,
			Total:   doc.Total,
			Devices: doc.Devices,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// TotalsByTokens sums each token's date buckets server-side.
func (r *ClicksRepository) TotalsByTokens(ctx context.Context, tokens []string) (map[string]int64, error) {
	out := make(map[string]int64, len(tokens))
	if len(tokens) == 0 {
		return out, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"token": bson.M{"$in": tokens}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$token",
			"total": bson.M{"$sum": "$total"},
		}}},
	}

	cur, err := r.buckets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			Token string `bson:"_id"`
			Total int64  `bson:"total"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Token] = row.Total
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *ClicksRepository) VisitsByTokens(ctx context.Context, tokens []string) ([]analytics.Visit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	cur, err := r.visits.Find(ctx, bson.M{"token": bson.M{"$in": tokens}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []analytics.Visit
	for cur.Next(ctx) {
		var doc visitDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, analytics.Visit{
			Token:       doc.Token,
			Destination: doc.Destination,
			OwnerID:     doc.OwnerID,
			Date:        doc.Date,
			Timestamp:   doc.Timestamp,
			IP:          doc.IP,
			Device:      analytics.ParseDeviceClass(doc.Device),
			OS:          doc.OS,
			Browser:     doc.Browser,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// PurgeToken removes a deleted link's visits and buckets.
func (r *ClicksRepository) PurgeToken(ctx context.Context, token string) error {
	if _, err := r.buckets.DeleteMany(ctx, bson.M{"token": token}); err != nil {
		return err
	}
	_, err := r.visits.DeleteMany(ctx, bson.M{"token": token})
	return err
}
