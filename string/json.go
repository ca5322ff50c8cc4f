package string

import "encoding/json"

// JSONStringify marshals the value to a JSON string. Pass true to pretty
// print. Panics on values encoding/json cannot marshal.
func JSONStringify(v interface{}, pretty ...bool) string {
	var buf []byte
	var err error
	if len(pretty) > 0 && pretty[0] {
		buf, err = json.MarshalIndent(v, "", "  ")
	} else {
		buf, err = json.Marshal(v)
	}
	if err != nil {
		panic(err)
	}
	return string(buf)
}
