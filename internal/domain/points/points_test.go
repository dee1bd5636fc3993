package points

import (
	"errors"
	"testing"

	"github.com/lutefd/draftpoints-api/internal/domain/stats"
)

func TestKeyFor(t *testing.T) {
	key, err := KeyFor(stats.StatRecord{PlayerID: "sa3011", Source: stats.SourceZiPS}, "DefaultPoints")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.String() != "sa3011/zips/DefaultPoints" {
		t.Fatalf("unexpected key %s", key)
	}
}

func TestKeyForMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		rec   stats.StatRecord
		field string
	}{
		{name: "no player", rec: stats.StatRecord{Source: stats.SourceZiPS}, field: "playerId"},
		{name: "no source", rec: stats.StatRecord{PlayerID: "1"}, field: "projectionSource"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := KeyFor(tc.rec, "DefaultPoints")
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if missing.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, missing.Field)
			}
		})
	}
}
