package service

import (
	"errors"
	"testing"

	"github.com/noteduco342/campus-stories-backend/internal/models"
)

func TestProfile(t *testing.T) {
	userRepo := NewMockUserRepository()
	userService := NewUserService(userRepo, nil)

	if err := userRepo.Create(&models.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x", FullName: "Alice A",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	profile, err := userService.Profile(1)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.Username != "alice" || profile.FullName != "Alice A" {
		t.Fatalf("profile = %+v", profile)
	}

	if _, err := userService.Profile(999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestProfilesBatchesMisses(t *testing.T) {
	userRepo := NewMockUserRepository()
	userService := NewUserService(userRepo, nil)

	if err := userRepo.Create(&models.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x", FullName: "Alice A",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := userRepo.Create(&models.User{
		Username: "bob", Email: "bob@example.com", PasswordHash: "x",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	// Duplicate and unknown IDs must not produce extra rows or extra reads.
	profiles, err := userService.Profiles([]uint{1, 2, 2, 999})
	if err != nil {
		t.Fatalf("Profiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2: %+v", len(profiles), profiles)
	}
	if profiles[1].Username != "alice" || profiles[2].Username != "bob" {
		t.Fatalf("profiles = %+v", profiles)
	}
	if userRepo.findByIDsCalls != 1 {
		t.Errorf("got %d batch reads, want 1", userRepo.findByIDsCalls)
	}

	empty, err := userService.Profiles(nil)
	if err != nil {
		t.Fatalf("Profiles(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d profiles for no IDs", len(empty))
	}
	if userRepo.findByIDsCalls != 1 {
		t.Errorf("empty input must not hit the store, got %d batch reads", userRepo.findByIDsCalls)
	}
}

func TestUpdateProfile(t *testing.T) {
	userRepo := NewMockUserRepository()
	userService := NewUserService(userRepo, nil)

	if err := userRepo.Create(&models.User{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x", FullName: "Alice A",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	newName := "Alice B"
	updated, err := userService.UpdateProfile(1, UpdateProfileInput{FullName: &newName})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.FullName != "Alice B" {
		t.Fatalf("full name = %q", updated.FullName)
	}
	if updated.Username != "alice" {
		t.Fatalf("unset fields must be left alone, got %+v", updated)
	}

	stored, _ := userRepo.FindByID(1)
	if stored.FullName != "Alice B" {
		t.Fatalf("update not persisted")
	}
}
