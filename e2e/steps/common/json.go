package common

import "encoding/json"

func unmarshal(content string, v interface{}) error {
	return json.Unmarshal([]byte(content), v)
}
