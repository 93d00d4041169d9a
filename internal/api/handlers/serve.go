package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/juspay/airborne/internal/apierr"
	"github.com/juspay/airborne/internal/api/middleware"
	"github.com/juspay/airborne/internal/resolver"
)

// DimensionHeader carries the client's dimension context as
// "k1=v1;k2=v2;...", per spec.md §6.
const DimensionHeader = "x-dimension"

// ServeHandler serves the stable client-facing release resolution
// endpoint (spec.md §6): GET /release/{org}/{app}?toss=<1..100>.
type ServeHandler struct {
	resolver *resolver.Resolver
}

func NewServeHandler(r *resolver.Resolver) *ServeHandler {
	return &ServeHandler{resolver: r}
}

// Resolve handles GET /release/{org}/{app}.
func (h *ServeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := middleware.GetRequestID(r.Context())

	toss, err := strconv.Atoi(r.URL.Query().Get("toss"))
	if err != nil || toss < 1 || toss > 100 {
		apierr.WriteError(w, apierr.BadRequest("toss query parameter must be an integer in [1,100]").WithRequestID(requestID))
		return
	}

	res, err := h.resolver.Resolve(r.Context(), resolver.ResolveInput{
		Org:              vars["org"],
		App:              vars["app"],
		DimensionContext: parseDimensionHeader(r.Header.Get(DimensionHeader)),
		Toss:             toss,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400, stale-while-revalidate=60")
	writeJSON(w, serveResponse(res))
}

// parseDimensionHeader parses the "k1=v1;k2=v2" grammar of the
// x-dimension request header.
func parseDimensionHeader(header string) map[string]string {
	out := map[string]string{}
	if header == "" {
		return out
	}
	for _, pair := range strings.Split(header, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}

func fileResponse(f resolver.ResolvedFile) map[string]interface{} {
	return map[string]interface{}{
		"file_path": f.FilePath,
		"url":       f.URL,
		"checksum":  f.Checksum,
	}
}

func fileListResponse(fs []resolver.ResolvedFile) []map[string]interface{} {
	out := make([]map[string]interface{}, len(fs))
	for i, f := range fs {
		out[i] = fileResponse(f)
	}
	return out
}

// serveResponse renders a resolver.Resolution into the exact wire shape
// spec.md §6 defines: {version, config, package, resources}.
func serveResponse(res *resolver.Resolution) map[string]interface{} {
	pkg := map[string]interface{}{
		"version":   res.Package.Version,
		"important": fileListResponse(res.Package.Important),
		"lazy":      fileListResponse(res.Package.Lazy),
	}
	if res.Package.Index != nil {
		pkg["index"] = fileResponse(*res.Package.Index)
	}

	config := map[string]interface{}{
		"version":    res.Config.Version,
		"properties": res.Config.Properties,
	}
	if res.Config.BootTimeout != nil {
		config["boot_timeout"] = *res.Config.BootTimeout
	}
	if res.Config.ReleaseConfigTimeout != nil {
		config["release_config_timeout"] = *res.Config.ReleaseConfigTimeout
	}

	return map[string]interface{}{
		"version":   res.Version,
		"config":    config,
		"package":   pkg,
		"resources": fileListResponse(res.Resources),
	}
}
