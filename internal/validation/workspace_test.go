package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWorkspaceID(t *testing.T) {
	tests := []struct {
		name        string
		workspaceID string
		wantErr     bool
	}{
		{name: "valid simple", workspaceID: "demo", wantErr: false},
		{name: "valid with hyphen", workspaceID: "team-board", wantErr: false},
		{name: "valid with underscore", workspaceID: "team_board_2", wantErr: false},
		{name: "valid mixed case", workspaceID: "TeamBoard", wantErr: false},
		{name: "valid min length", workspaceID: "abc", wantErr: false},
		{name: "valid max length", workspaceID: strings.Repeat("a", MaxWorkspaceIDLen), wantErr: false},
		{name: "empty", workspaceID: "", wantErr: true},
		{name: "too short", workspaceID: "ab", wantErr: true},
		{name: "too long", workspaceID: strings.Repeat("a", MaxWorkspaceIDLen+1), wantErr: true},
		{name: "spaces", workspaceID: "team board", wantErr: true},
		{name: "slash", workspaceID: "team/board", wantErr: true},
		{name: "colon", workspaceID: "team:board", wantErr: true},
		{name: "unicode", workspaceID: "доска", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorkspaceID(tt.workspaceID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
