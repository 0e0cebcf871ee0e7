package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashlad/fserver/internal/ingest"
)

var errBadAccountIndex = errors.New("account indices are not contiguous")

type handler struct {
	svc Ingester
	log *zap.Logger
}

func (h *handler) ping(c *gin.Context) {
	c.String(http.StatusOK, PingReply)
}

func (h *handler) storeSingle(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.formError(c, "file", err)
		return
	}
	content, err := readUpload(fh)
	if err != nil {
		h.formError(c, "file", err)
		return
	}

	env, err := h.svc.StoreSingle(c.Request.Context(), content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *handler) storeMany(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.formError(c, "files", err)
		return
	}

	headers := form.File["files"]
	contents := make([]ingest.FileContent, 0, len(headers))
	for _, fh := range headers {
		content, err := readUpload(fh)
		if err != nil {
			h.formError(c, "files", err)
			return
		}
		contents = append(contents, content)
	}

	out, err := h.svc.StoreMany(c.Request.Context(), contents)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) storeWithAccount(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		h.formError(c, "file", err)
		return
	}
	content, err := readUpload(fh)
	if err != nil {
		h.formError(c, "file", err)
		return
	}
	fields := ingest.AccountFields{
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}

	env, err := h.svc.StoreWithAccount(c.Request.Context(), content, fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *handler) storeAccounts(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.formError(c, "accounts", err)
		return
	}

	items, field, err := accountItems(form)
	if err != nil {
		h.formError(c, field, err)
		return
	}

	out, err := h.svc.StoreAccounts(c.Request.Context(), items)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) findFile(c *gin.Context) {
	env, err := h.svc.FindFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *handler) fileContent(c *gin.Context) {
	info, data, err := h.svc.OpenFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Filename}))
	c.Data(http.StatusOK, info.ContentType, data)
}

// fail writes the failure envelope for a pipeline error.
func (h *handler) fail(c *gin.Context, err error) {
	env := ingest.ErrorEnvelope[struct{}](err)
	if env.Status == ingest.StatusInternalError {
		h.log.Error("request failed",
			zap.String("request_id", RequestIDFromContext(c.Request.Context())),
			zap.Error(err))
	}
	c.JSON(env.Status.HTTPCode(), env)
}

// formError rejects a request whose multipart body could not be decoded.
func (h *handler) formError(c *gin.Context, field string, err error) {
	message := fmt.Sprintf("Sorry! could not read request part '%s'", field)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile):
		message = fmt.Sprintf("Required request part '%s' is not present", field)
	case errors.As(err, &tooLarge):
		message = fmt.Sprintf("Sorry! upload exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, errBadAccountIndex):
		message = fmt.Sprintf("Sorry! account indices must run from 0 without gaps, '%s' is missing or invalid", field)
	}
	h.log.Debug("bad multipart request", zap.String("field", field), zap.Error(err))

	c.JSON(http.StatusBadRequest, ingest.Envelope[struct{}]{
		Message: message,
		Status:  ingest.StatusBadRequest,
	})
}

var accountKey = regexp.MustCompile(`^accounts\[(\d+)\]\.(file|email|password)$`)

// accountItems decodes accounts[i].file, accounts[i].email and
// accounts[i].password. Indices must run from 0 without gaps. On failure it
// also returns the offending field.
func accountItems(form *multipart.Form) ([]ingest.AccountItem, string, error) {
	indices := make(map[int]struct{})
	collect := func(key string) error {
		m := accountKey.FindStringSubmatch(key)
		if m == nil {
			return nil
		}
		i, err := strconv.Atoi(m[1])
		if err != nil {
			return errBadAccountIndex
		}
		indices[i] = struct{}{}
		return nil
	}
	for key := range form.File {
		if err := collect(key); err != nil {
			return nil, key, err
		}
	}
	for key := range form.Value {
		if err := collect(key); err != nil {
			return nil, key, err
		}
	}

	items := make([]ingest.AccountItem, len(indices))
	for i := range items {
		prefix := "accounts[" + strconv.Itoa(i) + "]."
		if _, ok := indices[i]; !ok {
			return nil, strings.TrimSuffix(prefix, "."), errBadAccountIndex
		}

		files := form.File[prefix+"file"]
		if len(files) == 0 {
			return nil, prefix + "file", http.ErrMissingFile
		}
		content, err := readUpload(files[0])
		if err != nil {
			return nil, prefix + "file", err
		}
		items[i] = ingest.AccountItem{
			File: content,
			Fields: ingest.AccountFields{
				Email:    first(form.Value[prefix+"email"]),
				Password: first(form.Value[prefix+"password"]),
			},
		}
	}
	return items, "", nil
}

// readUpload buffers one multipart file along with its declared type.
func readUpload(fh *multipart.FileHeader) (ingest.FileContent, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.FileContent{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.FileContent{}, err
	}
	return ingest.FileContent{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
