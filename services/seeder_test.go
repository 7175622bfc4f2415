package services

import (
	"context"
	"testing"
)

func TestSeedDatabaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seeder := NewDatabaseSeeder(store)

	for i := 0; i < 2; i++ {
		if err := seeder.SeedDatabase(ctx); err != nil {
			t.Fatalf("SeedDatabase run %d: %v", i+1, err)
		}
	}

	if len(store.users) != 2 {
		t.Errorf("users = %d, want 2", len(store.users))
	}
	if len(store.interviewers) != len(defaultInterviewers) {
		t.Errorf("interviewers = %d, want %d", len(store.interviewers), len(defaultInterviewers))
	}
	companies := defaultCompanies()
	if len(store.companies) != len(companies) {
		t.Errorf("companies = %d, want %d", len(store.companies), len(companies))
	}
	wantJobs := 0
	for _, c := range companies {
		wantJobs += len(c.jobs)
	}
	if len(store.jobs) != wantJobs {
		t.Errorf("jobs = %d, want %d", len(store.jobs), wantJobs)
	}

	for _, job := range store.jobs {
		if job.CompanyID == "" || !job.IsActive || job.PostedAt.IsZero() {
			t.Errorf("job not linked or dated: %+v", job)
		}
	}
}

func TestSeededUsersCanLogIn(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	if err := NewDatabaseSeeder(store).SeedDatabase(ctx); err != nil {
		t.Fatal(err)
	}
	auth := newTestAuth(store)
	if _, err := auth.Login(ctx, "demo@example.com", "password"); err != nil {
		t.Errorf("demo login: %v", err)
	}
}
