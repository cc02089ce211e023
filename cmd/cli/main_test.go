package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posbridge/pricing-service/internal/engine"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(" 18, 20,,7 ")
	require.NoError(t, err)
	assert.Equal(t, []int{18, 20, 7}, ids)

	ids, err = parseIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseIDs("18,flower")
	assert.Error(t, err)
}

func TestParseProductRef(t *testing.T) {
	tests := []struct {
		arg     string
		want    engine.ProductRef
		wantErr bool
	}{
		{arg: "101", want: engine.ProductRef{ID: 101}},
		{arg: "101:18", want: engine.ProductRef{ID: 101, CategoryIDs: []int{18}}},
		{arg: "101:18,20", want: engine.ProductRef{ID: 101, CategoryIDs: []int{18, 20}}},
		{arg: "abc:18", wantErr: true},
		{arg: "101:x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseProductRef(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
