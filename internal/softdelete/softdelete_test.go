package softdelete

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"admitdesk/pkg/apperrors"
)

func TestDeletedSignalCombinations(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		schema Schema
		view   View
		want   bool
	}{
		{
			name:   "no signals declared, never filtered",
			schema: Schema{},
			view:   View{DeletedAt: &now, IsDeleted: true, Status: StatusDeleted},
			want:   false,
		},
		{
			name:   "deleted_at set",
			schema: Schema{HasDeletedAt: true},
			view:   View{DeletedAt: &now},
			want:   true,
		},
		{
			name:   "deleted_at null",
			schema: Schema{HasDeletedAt: true},
			view:   View{},
			want:   false,
		},
		{
			name:   "is_deleted true",
			schema: Schema{HasIsDeleted: true},
			view:   View{IsDeleted: true},
			want:   true,
		},
		{
			name:   "status deleted",
			schema: Schema{HasStatus: true},
			view:   View{Status: StatusDeleted},
			want:   true,
		},
		{
			name:   "status other than deleted",
			schema: Schema{HasStatus: true},
			view:   View{Status: "printed"},
			want:   false,
		},
		{
			name:   "signals OR together, any one fires",
			schema: Schema{HasDeletedAt: true, HasIsDeleted: true, HasStatus: true},
			view:   View{Status: StatusDeleted},
			want:   true,
		},
		{
			name:   "undeclared signal is ignored",
			schema: Schema{HasDeletedAt: true},
			view:   View{IsDeleted: true, Status: StatusDeleted},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Deleted(tt.schema, tt.view))
		})
	}
}

func TestEnsureLive(t *testing.T) {
	now := time.Now()
	schema := Schema{HasDeletedAt: true, HasStatus: true}

	assert.NoError(t, EnsureLive(schema, View{Status: "saved"}))

	err := EnsureLive(schema, View{DeletedAt: &now})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGone), "soft-deleted records answer 410, not 404")
}

func TestSQLPredicate(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		want   string
	}{
		{"no signals", Schema{}, ""},
		{"deleted_at only", Schema{HasDeletedAt: true}, "deleted_at IS NULL"},
		{
			"all signals",
			Schema{HasDeletedAt: true, HasIsDeleted: true, HasStatus: true},
			"deleted_at IS NULL AND is_deleted = FALSE AND status <> 'deleted'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SQLPredicate(tt.schema))
		})
	}
}
