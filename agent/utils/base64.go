package utils

import "encoding/base64"

// DecodeB64 decodes both padded and raw URL encoded strings. Invitation URLs
// in the wild use both.
func DecodeB64(str string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(str)
	if err != nil {
		data, err = base64.RawURLEncoding.DecodeString(str)
	}
	return data, err
}

func EncodeB64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeStdB64 is for attachment data which uses the standard alphabet.
func DecodeStdB64(str string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(str)
	}
	return data, err
}
