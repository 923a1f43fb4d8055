package models

import (
	"encoding/json"
	"fmt"
)

func stringify(v interface{}) string {
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}
