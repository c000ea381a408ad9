package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"
)

var errEmptyBody = errors.New("empty request body")

// decodeBody reads a JSON or protobuf Struct body into out. Unknown fields
// are rejected.
func decodeBody(r *http.Request, out any) error {
	var (
		raw map[string]any
		err error
	)
	if isProtobuf(r) {
		raw, err = readProto(r)
	} else {
		err = json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&raw)
		if errors.Is(err, io.EOF) {
			err = errEmptyBody
		}
	}
	if err != nil {
		return err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
		TagName:     "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// respond writes body as protobuf when the client speaks protobuf and as
// JSON otherwise. body must only hold structpb-compatible values.
func respond(w http.ResponseWriter, r *http.Request, status int, body map[string]any) {
	if wantsProtobuf(r) {
		st, err := structpb.NewStruct(body)
		if err != nil {
			http.Error(w, "proto encode error", http.StatusInternalServerError)
			return
		}
		writeProto(w, status, st)
		return
	}
	writeJSON(w, status, body)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	respond(w, r, status, map[string]any{"error": code, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func stringList(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
