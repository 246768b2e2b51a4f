package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/canlogger/canlogger/internal/catalog"
)

// ListFiles handles GET /api/files: the full catalog array.
func (h *Handler) ListFiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"files": h.cat.All()})
}

// findEntry looks up a catalog entry by its path, which doubles as the
// "{id}" path segment: log file paths are bare filenames with no directory
// component (see logfile.Manager.Open), so the id itself is a safe, direct
// catalog key — no separate numeric ID scheme is needed.
func (h *Handler) findEntry(id string) (catalog.Entry, bool) {
	return h.cat.Find(id)
}

// DownloadFile handles GET /api/files/{id}/download: streams the raw file
// and, on a fully successful transfer, sets the Downloaded flag.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := h.findEntry(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown file")
		return
	}

	rc, size, err := h.backend.Read(entry.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, "file unreadable")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Path))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.WriteHeader(http.StatusOK)

	if n, err := io.Copy(w, rc); err != nil || n != size {
		h.logger.Warn("handler: download did not complete", "path", entry.Path, "err", err, "sent", n, "size", size)
		return
	}
	h.cat.SetFlags(entry.Path, catalog.FlagDownloaded, true)
}

// MarkDownloaded handles POST /api/files/{id}/mark_downloaded.
func (h *Handler) MarkDownloaded(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.cat.SetFlags(id, catalog.FlagDownloaded, true) {
		writeError(w, http.StatusNotFound, "unknown file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteFile handles POST /api/files/{id}/delete: removes the file from
// storage and its catalog entry. Active files cannot be deleted through
// this route — close them first via /api/control/close_active_file.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry, ok := h.findEntry(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown file")
		return
	}
	if entry.Active() {
		writeError(w, http.StatusBadRequest, "file is active, stop logging first")
		return
	}
	if err := h.backend.Delete(entry.Path); err != nil {
		writeSubsystemError(w, err)
		return
	}
	h.cat.Remove(entry.Path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
