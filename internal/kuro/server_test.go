package kuro_test

import (
	"testing"

	"github.com/HibiKier/wuthering-waves/internal/kuro"
	"github.com/stretchr/testify/require"
)

func TestServerID(t *testing.T) {
	tests := []struct {
		playerID string
		want     string
	}{
		{"100000001", kuro.DefaultServerID},
		{"199999999", kuro.DefaultServerID},
		{"500000001", "591d6af3a3090d8ea00d8f86cf6d7501"},
		{"600000001", "6eb2a235b30d05efd77bedb5cf60999e"},
		{"900000001", "10cd7254d57e58ae560b15d51e34b4c8"},
		{"300000001", kuro.DefaultNetServerID},
		{"not-a-number", kuro.DefaultServerID},
	}

	for _, tt := range tests {
		t.Run(tt.playerID, func(t *testing.T) {
			require.Equal(t, tt.want, kuro.ServerID(tt.playerID))
		})
	}
}
