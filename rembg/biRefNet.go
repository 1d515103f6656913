package rembg

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/ksuid"

	nhttp "github.com/chaos-io/rembg-tool/util/http"
)

const (
	BiRefNetModel = "BiRefNet"

	uploadPath  = "api/upload/image"
	promptPath  = "api/prompt"
	historyPath = "api/history/"
	viewPath    = "api/view"
	statsPath   = "api/system_stats"

	loadImageClass = "LoadImage"
	saveImageClass = "SaveImage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed workflow.json
var workflowData []byte

// BiRefNetRemBG 通过 ComfyUI 上的 BiRefNet 工作流抠图
//
//	上传图片 -> 提交 prompt -> 轮询 history -> 下载 SaveImage 的输出
type BiRefNetRemBG struct {
	baseURL      string
	pollInterval time.Duration
	workflow     map[string]workflowNode
	loadNode     string
	saveNode     string
	cli          nhttp.IClient
}

type workflowNode struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
	Meta      map[string]interface{} `json:"_meta,omitempty"`
}

// NewBiRefNetRemBG workflow 为空时使用内置的 workflow.json
// 工作流里必须有且只有一个 LoadImage 和一个 SaveImage 节点
func NewBiRefNetRemBG(baseURL string, pollInterval time.Duration, workflow []byte) (*BiRefNetRemBG, error) {
	if len(workflow) == 0 {
		workflow = workflowData
	}

	wk := map[string]workflowNode{}
	if err := json.Unmarshal(workflow, &wk); err != nil {
		return nil, fmt.Errorf("unmarshal workflow data: %w", err)
	}

	b := &BiRefNetRemBG{
		baseURL:      strings.TrimRight(baseURL, "/") + "/",
		pollInterval: pollInterval,
		workflow:     wk,
		cli:          nhttp.NewHTTPClient(),
	}
	for id, node := range wk {
		switch node.ClassType {
		case loadImageClass:
			if b.loadNode != "" {
				return nil, fmt.Errorf("workflow has more than one %s node", loadImageClass)
			}
			b.loadNode = id
		case saveImageClass:
			if b.saveNode != "" {
				return nil, fmt.Errorf("workflow has more than one %s node", saveImageClass)
			}
			b.saveNode = id
		}
	}
	if b.loadNode == "" || b.saveNode == "" {
		return nil, fmt.Errorf("workflow needs a %s and a %s node", loadImageClass, saveImageClass)
	}
	if b.pollInterval <= 0 {
		b.pollInterval = 500 * time.Millisecond
	}
	return b, nil
}

func (b *BiRefNetRemBG) Remove(ctx context.Context, png []byte) ([]byte, error) {
	uploaded, err := b.uploadImage(ctx, png)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, err)
	}

	promptID, err := b.prompt(ctx, uploaded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, err)
	}

	output, err := b.waitOutput(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, err)
	}

	data, err := b.download(ctx, output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoval, err)
	}
	return data, nil
}

func (b *BiRefNetRemBG) Ping(ctx context.Context) error {
	return b.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: b.baseURL + statsPath,
		Method:     http.MethodGet,
		Timeout:    5 * time.Second,
	})
}

type imageRef struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

/*
	curl -X POST "$BASE_URL/api/upload/image" \
	  -F "image=@my_image.png" \
	  -F "type=input" \
	  -F "overwrite=true"

{"name": "my_image1.png", "subfolder": "", "type": "input"}
*/
func (b *BiRefNetRemBG) uploadImage(ctx context.Context, png []byte) (*imageRef, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", ksuid.New().String()+".png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	_ = writer.WriteField("type", "input")
	_ = writer.WriteField("overwrite", "true")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	resp := &imageRef{}
	err = b.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: b.baseURL + uploadPath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
	})
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	if resp.Name == "" {
		return nil, errors.New("upload image: empty name in response")
	}

	slog.Debug("uploaded image", "name", resp.Name, "subfolder", resp.Subfolder)
	return resp, nil
}

type promptResp struct {
	PromptID   string                 `json:"prompt_id"`
	Number     int                    `json:"number"`
	NodeErrors map[string]interface{} `json:"node_errors"`
}

/*
	curl -X POST "$BASE_URL/api/prompt" \
	  -H "Content-Type: application/json" \
	  -d '{"prompt": '"$(cat workflow.json)"', "client_id": "..."}'
*/
func (b *BiRefNetRemBG) prompt(ctx context.Context, uploaded *imageRef) (string, error) {
	// 每次请求复制一份工作流，只替换 LoadImage 的输入
	wk := make(map[string]workflowNode, len(b.workflow))
	for id, node := range b.workflow {
		inputs := make(map[string]interface{}, len(node.Inputs))
		for k, v := range node.Inputs {
			inputs[k] = v
		}
		node.Inputs = inputs
		wk[id] = node
	}
	wk[b.loadNode].Inputs["image"] = path.Join(uploaded.Subfolder, uploaded.Name)

	resp := &promptResp{}
	err := b.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: b.baseURL + promptPath,
		Method:     http.MethodPost,
		Body: map[string]interface{}{
			"prompt":    wk,
			"client_id": ksuid.New().String(),
		},
		Response: resp,
	})
	if err != nil {
		return "", fmt.Errorf("queue prompt: %w", err)
	}
	if len(resp.NodeErrors) > 0 {
		return "", fmt.Errorf("queue prompt: node errors %v", resp.NodeErrors)
	}
	if resp.PromptID == "" {
		return "", errors.New("queue prompt: empty prompt_id in response")
	}

	slog.Debug("queued prompt", "model", BiRefNetModel, "promptID", resp.PromptID, "number", resp.Number)
	return resp.PromptID, nil
}

type historyEntry struct {
	Status struct {
		StatusStr string          `json:"status_str"`
		Completed bool            `json:"completed"`
		Messages  [][]interface{} `json:"messages"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []imageRef `json:"images"`
	} `json:"outputs"`
}

// waitOutput 轮询 history 直到 SaveImage 节点产生输出
func (b *BiRefNetRemBG) waitOutput(ctx context.Context, promptID string) (*imageRef, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		history := map[string]historyEntry{}
		err := b.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
			RequestURI: b.baseURL + historyPath + promptID,
			Method:     http.MethodGet,
			Response:   &history,
		})
		if err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}

		if entry, ok := history[promptID]; ok {
			if entry.Status.StatusStr == "error" {
				return nil, fmt.Errorf("prompt %s failed: %v", promptID, entry.Status.Messages)
			}
			if out, ok := entry.Outputs[b.saveNode]; ok && len(out.Images) > 0 {
				return &out.Images[0], nil
			}
			if entry.Status.Completed {
				return nil, fmt.Errorf("prompt %s completed without output images", promptID)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

/*
	curl "$BASE_URL/api/view?filename=rembg_00001_.png&subfolder=&type=output"
*/
func (b *BiRefNetRemBG) download(ctx context.Context, ref *imageRef) ([]byte, error) {
	var data []byte
	err := b.cli.DoHTTPRequest(ctx, &nhttp.RequestParam{
		RequestURI: b.baseURL + viewPath,
		Method:     http.MethodGet,
		Query: map[string]string{
			"filename":  ref.Filename,
			"subfolder": ref.Subfolder,
			"type":      ref.Type,
		},
		Response: &data,
	})
	if err != nil {
		return nil, fmt.Errorf("download output: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("download output: empty image")
	}
	return data, nil
}
