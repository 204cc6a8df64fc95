package server

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// argumentGetter is the part of an MCP tool request that carries arguments.
type argumentGetter interface {
	GetArguments() map[string]any
}

// bindArguments decodes tool arguments into target. Clients that send every
// parameter as a string are accepted: a JSON-encoded array decodes into a
// slice, and a bare string becomes a one-element slice.
func bindArguments[T any](request argumentGetter, target *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonArrayHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(request.GetArguments())
}

// jsonArrayHook parses strings that look like JSON arrays into the target
// slice type.
func jsonArrayHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
		return data, nil
	}

	raw := strings.TrimSpace(data.(string))
	if !strings.HasPrefix(raw, "[") || !strings.HasSuffix(raw, "]") {
		return data, nil
	}

	slicePtr := reflect.New(t)
	if err := json.Unmarshal([]byte(raw), slicePtr.Interface()); err != nil {
		return data, nil
	}
	return slicePtr.Elem().Interface(), nil
}

// hasArgument reports whether the request carries a non-null value for name.
func hasArgument(request argumentGetter, name string) bool {
	v, ok := request.GetArguments()[name]
	return ok && v != nil
}
