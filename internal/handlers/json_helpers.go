package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"chandabaz/internal/query"
)

// maxJSONBody caps JSON request bodies
const maxJSONBody = 1 << 20

// Envelope is the body of every API response
type Envelope struct {
	Success    bool              `json:"success"`
	Data       any               `json:"data,omitempty"`
	Message    string            `json:"message,omitempty"`
	Pagination *query.Pagination `json:"pagination,omitempty"`
}

// JSONResponse sends a JSON response and ensures slices are never null
//
// Nil slices are encoded as "[]" instead of "null" so that frontends can
// iterate list fields without checks.
func JSONResponse(w http.ResponseWriter, data any) error {
	normalized := normalizeSlices(data)

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(normalized)
}

var timeType = reflect.TypeOf(time.Time{})

// normalizeSlices recursively ensures all nil slices become empty slices
func normalizeSlices(data any) any {
	if data == nil {
		return data
	}

	v := reflect.ValueOf(data)

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() || v.Elem().Type() == timeType {
			return data
		}
		normalized := normalizeSlices(v.Elem().Interface())
		result := reflect.New(v.Elem().Type())
		result.Elem().Set(reflect.ValueOf(normalized))
		return result.Interface()

	case reflect.Slice:
		if v.IsNil() {
			return reflect.MakeSlice(v.Type(), 0, 0).Interface()
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return data
		}
		result := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			setNormalized(result.Index(i), v.Index(i))
		}
		return result.Interface()

	case reflect.Struct:
		if v.Type() == timeType {
			return data
		}
		result := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			setNormalized(result.Field(i), v.Field(i))
		}
		return result.Interface()
	}

	return data
}

// setNormalized copies src into dst, normalising containers. Interface
// values keep their dynamic type; nil interfaces stay nil.
func setNormalized(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Slice, reflect.Ptr, reflect.Struct:
		dst.Set(reflect.ValueOf(normalizeSlices(src.Interface())))
	case reflect.Interface:
		if src.IsNil() {
			return
		}
		dst.Set(reflect.ValueOf(normalizeSlices(src.Interface())))
	default:
		dst.Set(src)
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(normalizeSlices(payload))
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(body, '\n'))
}

// respondWithData sends a success envelope
func respondWithData(w http.ResponseWriter, code int, data any) {
	respondWithJSON(w, code, Envelope{Success: true, Data: data})
}

// respondWithPage sends a success envelope with pagination metadata
func respondWithPage(w http.ResponseWriter, data any, pg query.Pagination) {
	respondWithJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: &pg})
}

// respondWithMessage sends a success envelope without data
func respondWithMessage(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Envelope{Success: true, Message: message})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Envelope{Success: false, Message: message})
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return errors.New(ErrMsgInvalidRequestBody)
	}
	return nil
}
