package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
)

// New requires requests to present a function key, either in the code query
// string parameter or the x-functions-key header.
func New(keyToName map[string]string, next http.Handler) *Auth {
	return &Auth{
		Next:      next,
		KeyToName: keyToName,
	}
}

type Auth struct {
	Next      http.Handler
	KeyToName map[string]string
}

// LoadFromFile reads a JSON map of function keys to key names.
func LoadFromFile(name string) (keyToName map[string]string, err error) {
	f, err := os.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m := make(map[string]string)
	if err = json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

type keyNameContextKey int

const keyNameKey keyNameContextKey = 0

// GetKeyName returns the name of the function key used to make the request.
func GetKeyName(r *http.Request) (name string, ok bool) {
	name, ok = r.Context().Value(keyNameKey).(string)
	return
}

func functionKey(r *http.Request) string {
	if key := r.Header.Get("x-functions-key"); key != "" {
		return key
	}
	return r.URL.Query().Get("code")
}

func (a *Auth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := a.KeyToName[functionKey(r)]
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	r = r.WithContext(context.WithValue(r.Context(), keyNameKey, name))
	a.Next.ServeHTTP(w, r)
}
