package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
)

var imageTypes = map[string]model.ContentType{
	".jpg":  model.ContentImageJPEG,
	".jpeg": model.ContentImageJPEG,
	".gif":  model.ContentImageGIF,
	".png":  model.ContentImagePNG,
}

func sendCmd() *cobra.Command {
	var image string
	cmd := &cobra.Command{
		Use:   "send <address> [text]",
		Short: "Send a text message, or an image with --image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := findContact(args[0])
			if err != nil {
				return err
			}

			var (
				content []byte
				typ     model.ContentType
			)
			switch {
			case image != "":
				var ok bool
				if typ, ok = imageTypes[strings.ToLower(filepath.Ext(image))]; !ok {
					return fmt.Errorf("%s: %w", image, errs.ErrUnknownContentType)
				}
				if content, err = os.ReadFile(image); err != nil {
					return err
				}
			case len(args) == 2:
				content, typ = []byte(args[1]), model.ContentTextPlain
			default:
				return fmt.Errorf("nothing to send: give a text or --image")
			}

			if _, err := sess.app.SendMessage(cmd.Context(), c, content, typ); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", typ, c.Address)
			return nil
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "send this JPEG, GIF or PNG file")
	return cmd
}
