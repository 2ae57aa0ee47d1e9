// Package util holds the encoding helpers of the run repository.
package util

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
)

//JsonString encodes v; map keys are sorted, so equal maps encode equally
func JsonString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

//ParseJson decodes s into v; a blank s leaves v untouched
func ParseJson(s string, v interface{}) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

//Digest is the hex md5 of the JSON encoding of v. Runs started with the same params share a digest.
func Digest(v interface{}) (string, error) {
	s, err := JsonString(v)
	if err != nil {
		return "", err
	}
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:]), nil
}
