package httpx

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"funneldash/internal/decode"
	"funneldash/internal/funnel"
	"funneldash/internal/identity"
)

// Multipart field names accepted by the extract endpoint, one per platform
// export type.
const (
	fieldInstagram   = "instagram"
	fieldLTK         = "ltk"
	fieldLTKEarnings = "ltk_earnings"
	fieldAmazon      = "amazon"
)

// handleExtract decodes platform exports posted under named form fields and
// returns the extracted metrics plus a funnel assembled from the combined
// bundle. The creator query parameter attributes the bundle; it is resolved
// against the roster when possible.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parsing multipart form: %v", err))
		return
	}

	bundle := funnel.Bundle{CreatorID: "unknown_creator", CreatorName: "Unassigned"}
	if creator := r.URL.Query().Get("creator"); creator != "" {
		bundle.CreatorName = creator
		if match := identity.Match(creator, s.Runner.Roster); match.CreatorID != "" {
			bundle.CreatorID = match.CreatorID
			for _, p := range s.Runner.Roster {
				if p.ID == match.CreatorID {
					bundle.CreatorName = p.Name
					break
				}
			}
		} else {
			bundle.CreatorID = creator
		}
	}

	out := map[string]any{}
	parsedAny := false

	if table, ok := s.decodeFormFile(w, r, fieldInstagram); ok {
		if table != nil {
			bundle.Instagram = funnel.ExtractInstagram(*table)
			out["instagram"] = bundle.Instagram
			parsedAny = true
		}
	} else {
		return
	}
	if table, ok := s.decodeFormFile(w, r, fieldLTK); ok {
		if table != nil {
			bundle.LtkProducts = funnel.ExtractLTKProducts(*table)
			out["ltk"] = bundle.LtkProducts
			parsedAny = true
		}
	} else {
		return
	}
	if table, ok := s.decodeFormFile(w, r, fieldLTKEarnings); ok {
		if table != nil {
			bundle.LtkEarnings = funnel.ExtractLTKEarnings(*table)
			out["ltkEarnings"] = bundle.LtkEarnings
			parsedAny = true
		}
	} else {
		return
	}
	if table, ok := s.decodeFormFile(w, r, fieldAmazon); ok {
		if table != nil {
			bundle.Amazon = funnel.ExtractAmazonItems(*table)
			out["amazon"] = bundle.Amazon
			parsedAny = true
		}
	} else {
		return
	}

	if !parsedAny {
		writeError(w, http.StatusBadRequest, "no platform files in upload (expected instagram, ltk, ltk_earnings, or amazon fields)")
		return
	}

	out["funnel"] = funnel.BuildFromBundle(bundle)
	writeJSON(w, out)
}

// decodeFormFile decodes one optional form file. The bool result is false
// only when an error response has already been written; a missing field
// yields (nil, true).
func (s *Server) decodeFormFile(w http.ResponseWriter, r *http.Request, field string) (*decode.RawTable, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, true
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading form field %q: %v", field, err))
		return nil, false
	}
	defer file.Close()

	data, err := readAllForm(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading uploaded file %q: %v", header.Filename, err))
		return nil, false
	}
	table, err := decode.ForFilename(header.Filename, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding %q: %v", header.Filename, err))
		return nil, false
	}
	return table, true
}

func readAllForm(f multipart.File) ([]byte, error) {
	return io.ReadAll(f)
}
