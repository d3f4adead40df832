package upload

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"tombola/config"
	"tombola/logger"
)

// Uploader archives finished log files to S3.
type Uploader struct {
	bucket   string
	host     string
	logger   *logger.Logger
	uploader s3manageriface.UploaderAPI
}

func NewUploader(s3config config.S3, logger *logger.Logger) (*Uploader, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(s3config.Region),
		Credentials:      credentials.NewStaticCredentials(s3config.AccessKey, s3config.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}

	if s3config.EndpointUrl != "" {
		awsConfig.Endpoint = aws.String(s3config.EndpointUrl)
	}

	sess, err := session.NewSession(awsConfig)

	if err != nil {
		return nil, err
	}

	host, err := os.Hostname()

	if err != nil {
		return nil, err
	}

	return &Uploader{
		bucket:   s3config.Bucket,
		host:     host,
		logger:   logger,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// UploadLogs sends every log file in logFolder except the newest, which is
// the one being written, to <host>/logs/<name> and removes the local copy
// once it is stored. It returns how many files were archived.
func (u *Uploader) UploadLogs(logFolder string) int {
	u.logger.LogInfo("Uploading logs to S3", "bucket", u.bucket, "folder", logFolder)

	entries, err := os.ReadDir(logFolder)

	if err != nil {
		u.logger.LogError(err, "Error reading log folder", "folder", logFolder)
		return 0
	}

	var filenames []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		filenames = append(filenames, e.Name())
	}

	if len(filenames) < 2 {
		return 0
	}

	sort.Strings(filenames)
	filenames = filenames[:len(filenames)-1]

	uploaded := 0
	for _, filename := range filenames {
		localFilename := filepath.Join(logFolder, filename)
		f, err := os.ReadFile(localFilename)

		if err != nil {
			u.logger.LogError(err, "Error reading log file", "filename", localFilename)
			continue
		}

		_, err = u.uploader.Upload(&s3manager.UploadInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(fmt.Sprintf("%s/logs/%s", u.host, filename)),
			Body:        bytes.NewReader(f),
			ContentType: aws.String("text/plain"),
		})

		if err != nil {
			u.logger.LogError(err, "Error uploading log file", "filename", filename)
			continue
		}

		if err := os.Remove(localFilename); err != nil {
			u.logger.LogError(err, "Error removing log file", "filename", filename)
			continue
		}
		uploaded++
	}

	u.logger.LogInfo("Log upload finished", "uploaded", uploaded, "candidates", len(filenames))
	return uploaded
}
