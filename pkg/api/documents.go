package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/dernek/pkg/apierror"
	"github.com/platinummonkey/dernek/pkg/audit"
	"github.com/platinummonkey/dernek/pkg/auth"
	"github.com/platinummonkey/dernek/pkg/httputil"
	"github.com/platinummonkey/dernek/pkg/storage"
)

const (
	msgBeneficiaryRequired = "Beneficiary ID gerekli"
	msgUploadFieldsMissing = "Dosya, beneficiary ID ve document type gerekli"
)

// registerDocumentRoutes registers the protected document routes
func (s *Server) registerDocumentRoutes(router *mux.Router) {
	if s.deps.Documents == nil {
		return
	}
	router.Handle("/documents", methods{
		http.MethodGet: s.mw.WithProtectedAPI(s.listDocuments,
			s.protectedOptions("Dokümanlar getirilemedi", "lenient", auth.PermDocumentsView)),
		http.MethodPost: s.mw.WithProtectedAPI(s.uploadDocument,
			s.protectedOptions("Doküman yüklenemedi", "standard", auth.PermDocumentsCreate)),
	})
}

// listDocuments handles GET /api/documents?beneficiary_id=
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request, _ *auth.Identity) error {
	beneficiaryID := httputil.ParseQueryString(r, "beneficiary_id", "")
	if beneficiaryID == "" {
		return apierror.BadRequest(msgBeneficiaryRequired)
	}

	rows, err := s.deps.Documents.List(r.Context(), beneficiaryID)
	if err != nil {
		return err
	}
	return httputil.WriteSuccess(w, http.StatusOK, rows, nil)
}

// uploadDocument handles multipart POST /api/documents with file, beneficiary_id and document_type
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.Newf(apierror.KindBadRequest, "Dosya boyutu en fazla %d MB olabilir", s.deps.MaxUploadBytes>>20)
		}
		return apierror.BadRequest(msgUploadFieldsMissing)
	}
	defer r.MultipartForm.RemoveAll()

	beneficiaryID := r.FormValue("beneficiary_id")
	documentType := r.FormValue("document_type")
	file, header, err := r.FormFile("file")
	if err != nil || beneficiaryID == "" || documentType == "" {
		return apierror.BadRequest(msgUploadFieldsMissing)
	}
	defer file.Close()

	row, err := s.deps.Documents.Upload(r.Context(), storage.Upload{
		BeneficiaryID: beneficiaryID,
		DocumentType:  documentType,
		FileName:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		UploadedBy:    identity.ID,
		Body:          file,
	})
	if err != nil {
		return err
	}

	s.logAudit(r, audit.NewEvent(r, audit.EventTypeDataUpload, audit.EventStatusSuccess).
		WithResource(audit.ResourceTypeDocument, recordID(row)))
	return httputil.WriteCreated(w, row)
}
