package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/vector"
)

func TestAssociateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     AssociateRequest
		wantErr bool
	}{
		{"empty key", AssociateRequest{Key: "", Value: "v"}, true},
		{"valid", AssociateRequest{Key: "k", Value: "v"}, false},
		{"empty value allowed", AssociateRequest{Key: "k"}, false},
		{"oversized key", AssociateRequest{Key: strings.Repeat("k", MaxInputBytes+1)}, true},
		{"oversized value", AssociateRequest{Key: "k", Value: strings.Repeat("v", MaxInputBytes+1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInputRequest_Validate(t *testing.T) {
	assert.NoError(t, (&InputRequest{}).Validate(), "empty input should be allowed")
	assert.Error(t, (&InputRequest{Input: strings.Repeat("x", MaxInputBytes+1)}).Validate())
}

func TestTaskRequest_Task(t *testing.T) {
	req := TaskRequest{ID: 5, Payload: [4]uint32{1, 2, 3, 4}}
	task := req.Task(entity.Device)
	assert.True(t, task.Valid)
	assert.Equal(t, entity.Device, task.Target)
	assert.EqualValues(t, 5, task.ID)
	assert.EqualValues(t, 4, task.Payload[3])

	invalid := false
	req.Valid = &invalid
	assert.False(t, req.Task(entity.Device).Valid, "explicit valid=false should be kept")
}

func TestSummarize(t *testing.T) {
	v := vector.EncodeString("TEST_PATTERN")
	s := Summarize(&v, false)
	assert.Equal(t, v.Signature, s.Fingerprint)
	assert.Equal(t, v.Active, s.Active)
	assert.True(t, s.Valid)
	assert.Nil(t, s.Components)
	assert.InDelta(t, vector.L2Norm(&v), s.Norm, 1e-9)
	assert.Greater(t, s.Norm, 0.0)

	s = Summarize(&v, true)
	assert.Len(t, s.Components, int(v.Active))
}

func TestCompare(t *testing.T) {
	a := vector.EncodeString("TEST_PATTERN")
	b := vector.EncodeString("EXPECTED_RESULT")

	self := Compare(&a, &a)
	assert.InDelta(t, 1.0, self.Cosine, 1e-5)
	assert.InDelta(t, vector.L2Norm(&a)*vector.L2Norm(&a), self.InnerProduct, 1e-4)

	other := Compare(&a, &b)
	assert.Less(t, other.Cosine, 1.0)
	assert.GreaterOrEqual(t, other.Cosine, -1.0)
	assert.InDelta(t, vector.InnerProduct(&a, &b), other.InnerProduct, 1e-9)
}

func TestParseEventKind(t *testing.T) {
	for _, s := range []string{"", "console", "insert", "overwrite", "task"} {
		k, err := ParseEventKind(s)
		require.NoError(t, err, s)
		assert.Equal(t, EventKind(s), k)
	}
	_, err := ParseEventKind("boot")
	assert.Error(t, err)
}
