package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc123", want: "abc123"},
		{name: "trailing space", header: "Bearer abc123 ", want: "abc123"},
		{name: "missing", header: "", wantErr: ErrMissingAuthHeader},
		{name: "no prefix", header: "abc123", wantErr: ErrInvalidAuthHeader},
		{name: "wrong scheme", header: "Basic abc123", wantErr: ErrInvalidAuthHeader},
		{name: "lowercase scheme", header: "bearer abc123", wantErr: ErrInvalidAuthHeader},
		{name: "prefix only", header: "Bearer ", wantErr: ErrInvalidAuthHeader},
		{name: "two tokens", header: "Bearer abc 123", wantErr: ErrInvalidAuthHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBearer(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
