package handler

import (
	"net/http"
	"testing"

	"github.com/canlogger/canlogger/internal/errs"
)

func TestStatusForKindCoversTaxonomy(t *testing.T) {
	cases := []struct {
		kind errs.Kind
		want int
	}{
		{errs.KindNotFound, http.StatusNotFound},
		{errs.KindUnauthorized, http.StatusUnauthorized},
		{errs.KindBadRequest, http.StatusBadRequest},
		{errs.KindConfigInvalid, http.StatusBadRequest},
		{errs.KindStorageFull, http.StatusInsufficientStorage},
		{errs.KindStorageUnavailable, http.StatusInsufficientStorage},
		{errs.KindBusDisabled, http.StatusConflict},
		{errs.KindBufferFull, http.StatusConflict},
		{errs.KindFileIOOpenFailed, http.StatusInternalServerError},
		{errs.KindFileIOShortWrite, http.StatusInternalServerError},
		{errs.KindWifiAssocTimeout, http.StatusServiceUnavailable},
		{errs.KindWifiScanFailed, http.StatusServiceUnavailable},
		{errs.KindUnknown, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusForKind(c.kind); got != c.want {
			t.Errorf("statusForKind(%v) = %d, want %d", c.kind, got, c.want)
		}
	}
}
