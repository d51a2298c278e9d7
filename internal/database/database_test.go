package database

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"vitalscan/internal/config"
)

var testService Service

func TestMain(m *testing.M) {
	log.Printf("=== DATABASE INTEGRATION TESTS ===")

	ctx := context.Background()
	mongoC, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		log.Printf("Skipping database tests: could not start mongo container: %v", err)
		os.Exit(0)
	}

	uri, err := mongoC.ConnectionString(ctx)
	if err != nil {
		log.Printf("Skipping database tests: %v", err)
		_ = testcontainers.TerminateContainer(mongoC)
		os.Exit(0)
	}

	testService, err = New(config.DatabaseConfig{URI: uri, Name: "test_vitalscan"})
	if err != nil {
		log.Printf("Skipping database tests: %v", err)
		_ = testcontainers.TerminateContainer(mongoC)
		os.Exit(0)
	}

	code := m.Run()

	testService.Close()
	_ = testcontainers.TerminateContainer(mongoC)
	os.Exit(code)
}

func TestHealth(t *testing.T) {
	t.Log("Testing health check against a live database")
	health := testService.Health()

	if health["message"] != "Database is healthy" {
		t.Errorf("expected healthy message, got %q", health["message"])
	}
	if health["status"] != "connected" {
		t.Errorf("expected status connected, got %q", health["status"])
	}
}

func TestGetDatabase(t *testing.T) {
	db := testService.GetDatabase()
	if db == nil {
		t.Fatal("expected a database handle")
	}
	if db.Name() != "test_vitalscan" {
		t.Errorf("expected database name test_vitalscan, got %q", db.Name())
	}
}

func TestHealthReportsScanCount(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := testService.GetDatabase().Collection("scans").InsertOne(ctx, map[string]any{"userId": "station-test"}); err != nil {
		t.Fatalf("failed to seed scan: %v", err)
	}

	health := testService.Health()
	if health["scans"] == "" {
		t.Error("expected the health payload to include a scan count")
	}
}
