package telegram

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/utils"
)

// Emit uploads one part with sendDocument. The multipart body is streamed
// from the part's buffer rather than copied.
func (c *Client) Emit(ctx context.Context, part utils.Part) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeDocumentForm(form, c.chatID, part))
	}()
	_, err := c.call(ctx, "sendDocument", form.FormDataContentType(), pr)
	pr.Close()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", utils.ErrSinkEmitFailed, part.Name, err)
	}
	log.Debug().Str("op", "telegram/sink").Msgf("sent %s (%s)", part.Name, utils.FormatBytes(uint64(len(part.Data))))
	return nil
}

func writeDocumentForm(form *multipart.Writer, chatID string, part utils.Part) error {
	if err := form.WriteField("chat_id", chatID); err != nil {
		return err
	}
	if err := form.WriteField("caption", part.Name); err != nil {
		return err
	}
	file, err := form.CreateFormFile("document", part.Name)
	if err != nil {
		return err
	}
	if _, err := file.Write(part.Data); err != nil {
		return err
	}
	return form.Close()
}
