package util

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestDigest(t *testing.T) {
	a, err := Digest(map[string]interface{}{"date": "2019-03-01", "region": "north"})
	assert.Equal(t, nil, err)
	b, _ := Digest(map[string]interface{}{"region": "north", "date": "2019-03-01"})
	assert.Equal(t, a, b)
	assert.Equal(t, 32, len(a))
	c, _ := Digest(map[string]interface{}{"date": "2019-03-02"})
	assert.NotEqual(t, a, c)
	// md5("null")
	n, _ := Digest(nil)
	assert.Equal(t, "37a6259cc0c1dae299a7866489dff0bd", n)
}

func TestParseJson(t *testing.T) {
	m := map[string]interface{}{"kept": true}
	assert.Equal(t, nil, ParseJson("  ", &m))
	assert.Equal(t, true, m["kept"])
	assert.Equal(t, nil, ParseJson(`{"date":"2019-03-01"}`, &m))
	assert.Equal(t, "2019-03-01", m["date"])
	assert.NotEqual(t, nil, ParseJson("{", &m))
}
