package annex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterURLRequestEncode(t *testing.T) {
	line, err := RegisterURLRequest{Key: "SHA256E-s10--abc", URL: "https://example.com/a.tar"}.EncodeAnnexLine()
	require.NoError(t, err)
	assert.Equal(t, "SHA256E-s10--abc https://example.com/a.tar", string(line))

	_, err = RegisterURLRequest{}.EncodeAnnexLine()
	assert.Error(t, err)
}

func TestRegisterURLOutput(t *testing.T) {
	raw := `{"command":"registerurl","success":true}`
	var out RegisterURLOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.NoError(t, out.Check())

	raw2 := `{"command":"registerurl","success":false,"error-messages":["bad key"]}`
	var out2 RegisterURLOutput
	require.NoError(t, json.Unmarshal([]byte(raw2), &out2))
	assert.Error(t, out2.Check())
}
