package handler

import (
	"mime/multipart"
	"strconv"

	"github.com/SecuShare/filevault/internal/service"
	"github.com/SecuShare/filevault/pkg/response"
	"github.com/SecuShare/filevault/pkg/sanitize"
	"github.com/gofiber/fiber/v2"
)

type FileHandler struct {
	fileSvc *service.FileService
}

func NewFileHandler(fileSvc *service.FileService) *FileHandler {
	return &FileHandler{fileSvc: fileSvc}
}

// Upload accepts one or more parts named "files" (or a single "file").
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	userID := localUserID(c)
	if userID == "" {
		return response.Unauthorized(c, "authentication required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return response.BadRequest(c, "multipart form is required")
	}
	headers := append([]*multipart.FileHeader{}, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	if len(headers) == 0 {
		return response.BadRequest(c, "at least one file is required")
	}

	uploads := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return response.InternalError(c, "failed to read file")
		}
		defer f.Close()
		uploads = append(uploads, service.UploadFile{
			Filename: fh.Filename,
			Size:     fh.Size,
			Content:  f,
		})
	}

	stored, err := h.fileSvc.Upload(c.UserContext(), userID, localRole(c), uploads)
	if err != nil {
		return writeServiceError(c, err, "failed to upload files")
	}

	for _, f := range stored {
		RecordFileUpload(float64(f.SizeBytes))
	}
	return response.Created(c, stored)
}

func (h *FileHandler) List(c *fiber.Ctx) error {
	files, err := h.fileSvc.List(c.UserContext(), localUserID(c))
	if err != nil {
		return writeServiceError(c, err, "failed to retrieve files")
	}
	return response.Success(c, files)
}

func (h *FileHandler) Delete(c *fiber.Ctx) error {
	fileID := c.Params("id")
	if fileID == "" {
		return response.BadRequest(c, "file id is required")
	}

	if err := h.fileSvc.Delete(c.UserContext(), fileID, localUserID(c)); err != nil {
		return writeServiceError(c, err, "failed to delete file")
	}
	return response.Success(c, map[string]string{"message": "file deleted"})
}

func (h *FileHandler) Download(c *fiber.Ctx) error {
	file, err := h.fileSvc.GetOwned(c.UserContext(), c.Params("id"), localUserID(c))
	if err != nil {
		return writeServiceError(c, err, "failed to load file")
	}

	safeName := sanitize.HeaderFilename(file.OriginalFilename)
	c.Set("Content-Disposition", "attachment; filename=\""+safeName+"\"")
	c.Set("Content-Type", file.MimeType)
	c.Set("X-File-Size", strconv.FormatInt(file.SizeBytes, 10))

	return c.SendFile(h.fileSvc.GetFilePath(file))
}
