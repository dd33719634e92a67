package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalString(t *testing.T) {
	var v struct {
		D Duration `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"1m30s"}`), &v))
	assert.Equal(t, 90*time.Second, v.D.Std())
}

func TestDuration_UnmarshalNumber(t *testing.T) {
	var v struct {
		D Duration `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":5000000000}`), &v))
	assert.Equal(t, 5*time.Second, v.D.Std())
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	var v struct {
		D Duration `json:"d"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"d":"nope"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"d":true}`), &v))
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal(Duration(3 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"3s"`, string(b))
}
