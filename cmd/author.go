package cmd

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"os"
	"path/filepath"
	"video-chapters/authoring"
	"video-chapters/config"
	"video-chapters/constant"
	"video-chapters/dto"
	"video-chapters/gateway"
	server2 "video-chapters/server"
	"video-chapters/toc"
)

func author(config *config.Config) *cobra.Command {
	authorCmd := &cobra.Command{
		Use:   "author",
		Short: "upload lesson videos and manage their chapters",
	}
	authorCmd.AddCommand(authorUpload(config))
	authorCmd.AddCommand(authorChapters(config))
	authorCmd.AddCommand(authorReorder(config))
	return authorCmd
}

func newGateway(cfg *config.Config) *gateway.Client {
	return gateway.NewClient(gateway.Options{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: cfg.Gateway.Timeout,
	})
}

func authorUpload(cfg *config.Config) *cobra.Command {
	var (
		topicID      int64
		file         string
		chaptersFile string
		quizID       int64
		triggerAt    string
	)
	c := &cobra.Command{
		Use:   "upload",
		Short: "store a video on a topic, then save its chapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)
			l := zerolog.Ctx(ctx)

			var staged []toc.Staged
			if chaptersFile != "" {
				var err error
				if staged, err = readChapters(chaptersFile); err != nil {
					return err
				}
			}

			up := authoring.Upload{FileName: filepath.Base(file), Kind: constant.AttachmentKindNormal}
			if quizID > 0 {
				at, err := authoring.ParseTimestamp(triggerAt)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				up.Kind = constant.AttachmentKindInteractive
				up.Trigger = &dto.Trigger{QuizID: quizID, Timestamp: at}
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			up.Body = f
			up.Size = info.Size()

			gw := newGateway(cfg)
			stepper := authoring.NewStepper(topicID, gw, gw, authoring.Options{LegacyIDProbing: cfg.Gateway.LegacyIDProbing})
			for _, s := range staged {
				if err := stepper.Stage(s); err != nil {
					return fmt.Errorf("chapter %q: %w", s.Name, err)
				}
			}

			id, err := stepper.PersistAttachment(ctx, up)
			if err != nil {
				return err
			}
			l.Info().Int64("attachment_id", id).Str("path", stepper.Path()).Msg("video stored")
			if len(staged) == 0 {
				return nil
			}

			report, err := stepper.Flush(ctx)
			l.Info().Int("attempted", report.Attempted).Int("saved", report.Saved).Int("rejected", len(report.Rejected)).Msg("chapters flushed")
			return err
		},
	}
	c.Flags().Int64Var(&topicID, "topic", 0, "topic id")
	c.Flags().StringVar(&file, "file", "", "video file")
	c.Flags().StringVar(&chaptersFile, "chapters", "", "chapter YAML file")
	c.Flags().Int64Var(&quizID, "quiz", 0, "quiz id that gates playback")
	c.Flags().StringVar(&triggerAt, "at", "0", "gate timestamp, seconds or m:ss")
	_ = c.MarkFlagRequired("topic")
	_ = c.MarkFlagRequired("file")
	return c
}

func authorChapters(cfg *config.Config) *cobra.Command {
	var (
		attachmentID int64
		chaptersFile string
	)
	c := &cobra.Command{
		Use:   "chapters",
		Short: "add chapters to a stored video",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)
			staged, err := readChapters(chaptersFile)
			if err != nil {
				return err
			}

			editor := authoring.NewEditor(newGateway(cfg), attachmentID)
			var errs []error
			for _, s := range staged {
				e, err := editor.Add(ctx, s)
				if err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Str("name", s.Name).Msg("chapter rejected")
					errs = append(errs, err)
					continue
				}
				zerolog.Ctx(ctx).Info().Int64("entry_id", e.ID).Str("name", e.Name).Int("order", e.Order).Msg("chapter saved")
			}
			return errors.Join(errs...)
		},
	}
	c.Flags().Int64Var(&attachmentID, "attachment", 0, "attachment id")
	c.Flags().StringVar(&chaptersFile, "file", "", "chapter YAML file")
	_ = c.MarkFlagRequired("attachment")
	_ = c.MarkFlagRequired("file")
	return c
}

func authorReorder(cfg *config.Config) *cobra.Command {
	var (
		attachmentID int64
		ids          []int64
	)
	c := &cobra.Command{
		Use:   "reorder",
		Short: "set the presentation order of a video's chapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(cfg)
			presented := make([]toc.Entry, 0, len(ids))
			for _, id := range ids {
				presented = append(presented, toc.Entry{ID: id})
			}

			editor := authoring.NewEditor(newGateway(cfg), attachmentID)
			list, err := editor.Reorder(ctx, presented)
			for _, e := range list {
				zerolog.Ctx(ctx).Info().Int("order", e.Order).Int64("entry_id", e.ID).Str("name", e.Name).Send()
			}
			return err
		},
	}
	c.Flags().Int64Var(&attachmentID, "attachment", 0, "attachment id")
	c.Flags().Int64SliceVar(&ids, "ids", nil, "chapter ids in the new order")
	_ = c.MarkFlagRequired("attachment")
	_ = c.MarkFlagRequired("ids")
	return c
}

func readChapters(path string) ([]toc.Staged, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return authoring.LoadChapters(f)
}
