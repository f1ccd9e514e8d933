package shield

import (
	"net/http"
	"strings"
)

// multipartOverhead is the allowance for part headers and boundaries on top of
// the file payload itself.
const multipartOverhead = 64 << 10

// jsonBodyLimit caps non-multipart bodies; form edits and logins are small.
const jsonBodyLimit = 1 << 20

// MaxBody caps request bodies. Multipart uploads may carry maxMultipart bytes
// of files plus framing; everything else is capped at 1 MiB. Per-file limits
// are enforced later by docpipe.
func MaxBody(maxMultipart int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				limit := int64(jsonBodyLimit)
				if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
					limit = maxMultipart + multipartOverhead
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
