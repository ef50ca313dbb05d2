package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"
)

const (
	remoteScheme = "gs://"
	stdioPath    = "-"

	outputYAML = "yaml"
	outputJSON = "json"
)

// target is a parsed gs://bucket/object reference; Object is empty for a bucket
type target struct {
	Bucket string
	Object string
}

func (t target) String() string {
	if t.Object == "" {
		return remoteScheme + t.Bucket
	}
	return remoteScheme + t.Bucket + "/" + t.Object
}

// isRemote reports whether arg names a gs:// location
func isRemote(arg string) bool {
	return strings.HasPrefix(arg, remoteScheme)
}

// parseTarget parses gs://bucket[/object]
func parseTarget(arg string) (target, error) {
	if !isRemote(arg) {
		return target{}, fmt.Errorf("%q is not a %sbucket[/object] location", arg, remoteScheme)
	}
	rest := strings.TrimPrefix(arg, remoteScheme)
	bucket, object, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return target{}, fmt.Errorf("%q has no bucket name", arg)
	}
	return target{Bucket: bucket, Object: object}, nil
}

func validateOutputFormat(format string) error {
	switch format {
	case outputYAML, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (allowed: %s, %s)", format, outputYAML, outputJSON)
	}
}

// printResource writes v as YAML or indented JSON. Both go through the json
// tags so the field names match the service.
func printResource(w io.Writer, format string, v any) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case outputJSON:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
