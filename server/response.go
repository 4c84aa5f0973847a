package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/teranos/skytrace/errors"
)

// ContentTypeCBOR is negotiated through the Accept header
const ContentTypeCBOR = "application/cbor"

// cborMode encodes deterministically with RFC3339 timestamps, which keep
// millisecond precision (the default Unix-seconds encoding would not)
var cborMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	cborMode, err = opts.EncMode()
	if err != nil {
		panic("server: CBOR encoder initialization failed: " + err.Error())
	}
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}

// writeCBOR writes a CBOR response with the given status code
func writeCBOR(w http.ResponseWriter, status int, data interface{}) error {
	body, err := cborMode.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "failed to encode CBOR")
	}
	w.Header().Set("Content-Type", ContentTypeCBOR)
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// writeNegotiated picks CBOR when the client asks for it, JSON otherwise
func writeNegotiated(w http.ResponseWriter, r *http.Request, status int, data interface{}) error {
	w.Header().Add("Vary", "Accept")
	if wantsCBOR(r) {
		return writeCBOR(w, status, data)
	}
	return writeJSON(w, status, data)
}

func wantsCBOR(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == ContentTypeCBOR {
			return true
		}
	}
	return false
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}
