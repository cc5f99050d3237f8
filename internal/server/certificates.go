package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	certificatedomain "github.com/smallbiznis/covercheck/internal/certificate/domain"
)

const uploadFormField = "file"

// UploadCertificate accepts a multipart PDF and runs extraction inline. The
// response is the extracted detail awaiting review.
func (s *Server) UploadCertificate(c *gin.Context) {
	entityID, ok := pathID(c, "id")
	if !ok {
		return
	}

	header, err := c.FormFile(uploadFormField)
	if err != nil {
		AbortWithError(c, newValidationError(uploadFormField, "missing_file", "a PDF file is required"))
		return
	}
	limit := s.cfg.Extraction.MaxDocumentBytes
	if limit > 0 && header.Size > limit {
		AbortWithError(c, certificatedomain.ErrTooLarge(limit))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer file.Close()

	// One byte past the limit lets the service report the size error.
	var reader io.Reader = file
	if limit > 0 {
		reader = io.LimitReader(file, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	orgID, actorID := requestOrg(c)
	detail, err := s.certificateSvc.Upload(c.Request.Context(), certificatedomain.UploadRequest{
		OrgID:       orgID,
		ActorID:     actorID,
		EntityID:    entityID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": detail})
}

func (s *Server) ListEntityCertificates(c *gin.Context) {
	entityID, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, _ := requestOrg(c)
	certs, err := s.certificateSvc.ListByEntity(c.Request.Context(), certificatedomain.ListByEntityRequest{
		OrgID:    orgID,
		EntityID: entityID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": certs})
}

func (s *Server) GetCertificate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, _ := requestOrg(c)
	detail, err := s.certificateSvc.GetByID(c.Request.Context(), certificatedomain.GetRequest{OrgID: orgID, ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) ConfirmCertificate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	orgID, actorID := requestOrg(c)
	resp, err := s.certificateSvc.Confirm(c.Request.Context(), certificatedomain.ConfirmRequest{
		OrgID:         orgID,
		ActorID:       actorID,
		CertificateID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
