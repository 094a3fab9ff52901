package models

import (
	"testing"
	"time"
)

// TestCreatedDate tests rendering of the quota creation date
func TestCreatedDate(t *testing.T) {
	created := time.Date(2015, 1, 1, 1, 1, 1, 0, time.UTC)
	quota := &Quota{GUID: "guid", Name: "name", CreatedAt: created}

	if got := quota.CreatedDate(); got != "2015-01-01" {
		t.Errorf("Expected 2015-01-01, got %s", got)
	}
}

// TestCreatedDateNone tests that a zero creation date renders as None
func TestCreatedDateNone(t *testing.T) {
	quota := &Quota{GUID: "guid", Name: "name"}

	if got := quota.CreatedDate(); got != "None" {
		t.Errorf("Expected None, got %s", got)
	}
}

// TestUpdatedDate tests rendering of the quota update date
func TestUpdatedDate(t *testing.T) {
	quota := &Quota{GUID: "guid", Name: "name"}
	if got := quota.UpdatedDate(); got != "None" {
		t.Errorf("Expected None for missing update date, got %s", got)
	}

	updated := time.Date(2014, 2, 2, 12, 0, 0, 0, time.UTC)
	quota.UpdatedAt = &updated
	if got := quota.UpdatedDate(); got != "2014-02-02" {
		t.Errorf("Expected 2014-02-02, got %s", got)
	}
}

// TestToday tests that Today produces a calendar date in the snapshot format
func TestToday(t *testing.T) {
	got := Today()
	if _, err := time.Parse(DateLayout, got); err != nil {
		t.Errorf("Today returned %q, not a valid date: %v", got, err)
	}
}
