package store

import (
	"context"
	"testing"

	"github.com/dukerupert/famquest/internal/model"
)

func TestRewardCRUD(t *testing.T) {
	db := setupTestDB(t)
	familyID, _ := seedFamily(t, db)
	rs := NewRewardStore(db)
	ctx := context.Background()

	movie, err := rs.Create(ctx, model.Reward{
		FamilyID: familyID, Title: "Movie Night", Description: "Pick the movie",
		Cost: 50, Category: model.CategoryFamily, Rarity: model.RarityRare, Active: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if movie.Title != "Movie Night" || movie.Cost != 50 || movie.Category != model.CategoryFamily {
		t.Errorf("created = %+v", movie)
	}

	if _, err := rs.Create(ctx, model.Reward{
		FamilyID: familyID, Title: "Sticker", Cost: 5,
		Category: model.CategoryIndividual, Rarity: model.RarityCommon, Active: false,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := rs.ListByFamily(ctx, familyID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d rewards, want 2", len(all))
	}
	if all[0].Title != "Movie Night" {
		t.Errorf("expected active rewards first, got %q", all[0].Title)
	}

	active, err := rs.ListByFamily(ctx, familyID, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("got %d active rewards, want 1", len(active))
	}

	movie.Cost = 60
	movie.Active = false
	updated, err := rs.Update(ctx, *movie)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Cost != 60 || updated.Active {
		t.Errorf("updated = %+v", updated)
	}

	if err := rs.Delete(ctx, movie.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := rs.GetByID(ctx, movie.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRewardRejectsNonPositiveCost(t *testing.T) {
	db := setupTestDB(t)
	familyID, _ := seedFamily(t, db)

	_, err := NewRewardStore(db).Create(context.Background(), model.Reward{
		FamilyID: familyID, Title: "Free", Cost: 0,
		Category: model.CategoryIndividual, Rarity: model.RarityCommon, Active: true,
	})
	if err == nil {
		t.Error("expected zero cost to be rejected")
	}
}
