package auditor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/perfkit/lighthouse-compare/internal/config"
)

// DockerRunner executes Lighthouse inside a container, bind-mounting the
// report directory. Useful when node and Chrome are not on the host.
type DockerRunner struct {
	cli         *client.Client
	image       string
	chromeFlags []string
}

func NewDockerRunner(cfg config.Auditor) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerRunner{cli: cli, image: cfg.DockerImage, chromeFlags: cfg.ChromeFlags}, nil
}

func (r *DockerRunner) Run(ctx context.Context, url, outPath string) error {
	hostDir, err := filepath.Abs(filepath.Dir(outPath))
	if err != nil {
		return err
	}
	containerPath := "/output/" + filepath.Base(outPath)

	cfg := &container.Config{
		Image: r.image,
		Cmd: []string{
			url,
			"--output=json",
			"--output-path", containerPath,
			"--quiet",
			"--chrome-flags=" + strings.Join(r.chromeFlags, " "),
		},
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{Type: mount.TypeBind, Source: hostDir, Target: "/output"}},
	}

	created, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if client.IsErrNotFound(err) {
		if pullErr := r.pull(ctx); pullErr != nil {
			return pullErr
		}
		created, err = r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	}
	if err != nil {
		return fmt.Errorf("failed to create lighthouse container: %w", err)
	}
	defer r.cli.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start lighthouse container: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return fmt.Errorf("lighthouse timed out for %s", url)
		}
		return err
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("lighthouse container exited with code %d: %s", status.StatusCode, r.logs(ctx, created.ID))
		}
	}
	return nil
}

func (r *DockerRunner) pull(ctx context.Context) error {
	reader, err := r.cli.ImagePull(ctx, r.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", r.image, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (r *DockerRunner) logs(ctx context.Context, id string) string {
	stream, err := r.cli.ContainerLogs(context.WithoutCancel(ctx), id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "10",
	})
	if err != nil {
		return ""
	}
	defer stream.Close()

	var buf bytes.Buffer
	stdcopy.StdCopy(&buf, &buf, stream)
	return strings.TrimSpace(buf.String())
}
