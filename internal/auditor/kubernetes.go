package auditor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/perfkit/lighthouse-compare/internal/config"
)

// KubernetesRunner executes Lighthouse as a batch Job and collects the
// report from the pod's stdout. Intended for deployments where the API
// itself runs in-cluster and audits should not share the API's node.
type KubernetesRunner struct {
	clientset   kubernetes.Interface
	namespace   string
	image       string
	chromeFlags []string
}

func NewKubernetesRunner(cfg config.Auditor) (*KubernetesRunner, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			kubeconfig = filepath.Join(os.Getenv("HOME"), ".kube", "config")
		}
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, err
	}
	return &KubernetesRunner{
		clientset:   clientset,
		namespace:   cfg.KubeNamespace,
		image:       cfg.DockerImage,
		chromeFlags: cfg.ChromeFlags,
	}, nil
}

func (r *KubernetesRunner) Run(ctx context.Context, url, outPath string) error {
	backoffLimit := int32(0)
	ttl := int32(300)

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: "lighthouse-",
			Labels:       map[string]string{"app.kubernetes.io/name": "lighthouse-compare"},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoffLimit,
			TTLSecondsAfterFinished: &ttl,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:  "lighthouse",
						Image: r.image,
						Args: []string{
							url,
							"--output=json",
							// stdout is the only channel out of the pod.
							"--output-path=stdout",
							"--quiet",
							"--chrome-flags=" + strings.Join(r.chromeFlags, " "),
						},
					}},
				},
			},
		},
	}

	jobs := r.clientset.BatchV1().Jobs(r.namespace)
	created, err := jobs.Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to create lighthouse job: %w", err)
	}
	defer func() {
		policy := metav1.DeletePropagationBackground
		jobs.Delete(context.WithoutCancel(ctx), created.Name, metav1.DeleteOptions{PropagationPolicy: &policy})
	}()

	if err := r.awaitJob(ctx, created.Name); err != nil {
		return err
	}
	return r.collectReport(ctx, created.Name, outPath)
}

func (r *KubernetesRunner) awaitJob(ctx context.Context, name string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("lighthouse job timed out")
		case <-ticker.C:
		}

		job, err := r.clientset.BatchV1().Jobs(r.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("failed to poll lighthouse job: %w", err)
		}
		if job.Status.Succeeded > 0 {
			return nil
		}
		if job.Status.Failed > 0 {
			return fmt.Errorf("lighthouse job failed")
		}
	}
}

func (r *KubernetesRunner) collectReport(ctx context.Context, jobName, outPath string) error {
	pods, err := r.clientset.CoreV1().Pods(r.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + jobName,
	})
	if err != nil || len(pods.Items) == 0 {
		return fmt.Errorf("lighthouse job pod not found")
	}

	stream, err := r.clientset.CoreV1().Pods(r.namespace).
		GetLogs(pods.Items[0].Name, &corev1.PodLogOptions{}).
		Stream(ctx)
	if err != nil {
		return fmt.Errorf("failed to read lighthouse job logs: %w", err)
	}
	defer stream.Close()

	file, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, stream)
	return err
}
