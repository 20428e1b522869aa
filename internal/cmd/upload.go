package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/eegrec/internal/config"
	"github.com/Iron-Ham/eegrec/internal/errors"
	"github.com/Iron-Ham/eegrec/internal/session"
	"github.com/Iron-Ham/eegrec/internal/upload"
	"github.com/Iron-Ham/eegrec/internal/util"
)

var sessionsUploadCmd = &cobra.Command{
	Use:   "upload [date/session]",
	Short: "Copy a session to S3",
	Long: `Copy a session's files to the bucket in upload.bucket. Defaults to the
most recent session. Keys are "<prefix>/<date>/<session>/<file>".

Credentials and region come from the standard AWS environment
(AWS_PROFILE, AWS_ACCESS_KEY_ID, ~/.aws/config) unless upload.region is set.

  eegrec sessions upload
  eegrec sessions upload 2024_05_01/Session_2 --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionsUpload,
}

var uploadDryRun bool

func init() {
	sessionsCmd.AddCommand(sessionsUploadCmd)
	f := sessionsUploadCmd.Flags()
	f.BoolVar(&uploadDryRun, "dry-run", false, "print the object keys without uploading")
	f.String("bucket", "", "S3 bucket (overrides upload.bucket)")
	f.String("prefix", "", "object key prefix (overrides upload.prefix)")
}

func runSessionsUpload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Upload.ValidateUpload(); err != nil {
		return err
	}

	archive, err := openArchive()
	if err != nil {
		return err
	}
	ref := ""
	if len(args) > 0 {
		ref = args[0]
	}
	info, err := findSession(archive, ref)
	if err != nil {
		return err
	}
	if err := checkNotRecording(archive, info); err != nil {
		return err
	}

	opts := upload.Options{
		Bucket:       cfg.Upload.Bucket,
		Prefix:       cfg.Upload.Prefix,
		Region:       cfg.Upload.Region,
		CreateBucket: cfg.Upload.CreateBucket,
	}
	out := cmd.OutOrStdout()

	if uploadDryRun {
		objects, err := upload.New(nil, archive.Fs(), opts, nil).Plan(info)
		if err != nil {
			return err
		}
		for _, obj := range objects {
			fmt.Fprintf(out, "s3://%s/%s  (%d bytes)\n", opts.Bucket, obj.Key, obj.Size)
		}
		fmt.Fprintf(out, "Dry run: %s not uploaded\n", util.Plural(len(objects), "file"))
		return nil
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	client, err := upload.NewS3Client(cmd.Context(), cfg.Upload.Region, cfg.Upload.Endpoint)
	if err != nil {
		return err
	}
	stored, err := upload.New(client, archive.Fs(), opts, logger).Session(cmd.Context(), info)
	for _, obj := range stored {
		fmt.Fprintf(out, "s3://%s/%s\n", opts.Bucket, obj.Key)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Uploaded %s from %s\n", util.Plural(len(stored), "file"), info.Path())
	return nil
}

// checkNotRecording refuses the newest session while a recorder holds the
// archive, since its data file is still growing.
func checkNotRecording(archive *session.Archive, info *session.Info) error {
	lock, locked := session.IsLocked(archive.Fs(), archive.Root())
	if !locked {
		return nil
	}
	latest, err := archive.Latest()
	if err != nil || latest.Dir != info.Dir {
		return nil
	}
	return fmt.Errorf("%w: PID %d is still recording %s", errors.ErrArchiveLocked, lock.PID, info.Path())
}
