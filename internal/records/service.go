package records

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const scanType = "Vital Scan"

type ScanService struct {
	scanCollection *mongo.Collection
	userID         string
}

func NewScanService(db *mongo.Database, userID string) *ScanService {
	s := &ScanService{
		scanCollection: db.Collection("scans"),
		userID:         userID,
	}

	// Reports are served newest-first; index the sort key up front.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.scanCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		log.Printf("ScanService: failed to create timestamp index: %v", err)
	}

	return s
}

func (s *ScanService) SaveScan(ctx context.Context, req SaveRequest) (*ScanRecord, error) {
	if req.Confidence <= 0 {
		req.Confidence = 85
	}

	record := ScanRecord{
		UserID:           s.userID,
		Type:             scanType,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Status:           "completed",
		HeartRate:        req.HeartRate,
		HRV:              req.HRV,
		BloodPressure:    req.BloodPressure,
		StressLevel:      req.StressLevel,
		Confidence:       req.Confidence,
		AIInterpretation: req.AIInterpretation,
	}

	res, err := s.scanCollection.InsertOne(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to insert scan: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		record.ID = id
	}

	return &record, nil
}

func (s *ScanService) RecentReports(ctx context.Context, limit int64) ([]Report, error) {
	if limit <= 0 {
		limit = 10
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cursor, err := s.scanCollection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer cursor.Close(ctx)

	var scans []ScanRecord
	if err := cursor.All(ctx, &scans); err != nil {
		return nil, fmt.Errorf("failed to decode scans: %w", err)
	}

	reports := make([]Report, 0, len(scans))
	for _, r := range scans {
		severity := r.StressLevel
		if severity == "" {
			severity = "None"
		}
		reports = append(reports, Report{
			ID:               r.ID.Hex(),
			Type:             r.Type,
			Timestamp:        r.Timestamp,
			AIInterpretation: r.AIInterpretation,
			Confidence:       r.Confidence,
			Severity:         severity,
			Risk:             "low_visual_risk",
		})
	}

	return reports, nil
}
