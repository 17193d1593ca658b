// Package linode implements provider.Client against the Linode v3 action
// API.
//
// Every call is a form POST carrying api_key and api_action. Responses are
// wrapped in an envelope:
//
//	{"ERRORARRAY": [{"ERRORCODE": 5, "ERRORMESSAGE": "Object not found"}],
//	 "ACTION": "linode.disk.list",
//	 "DATA": ...}
//
// A non-empty ERRORARRAY becomes an *APIError.
package linode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/linode-utils/internal/logging"
	"github.com/jbweber/linode-utils/internal/provider"
)

// DefaultHTTPTimeout bounds a single API request.
const DefaultHTTPTimeout = 30 * time.Second

// maxErrorBody caps how much of a non-200 body ends up in an error.
const maxErrorBody = 512

// Client is an HTTP client for the action API. It satisfies
// provider.Client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logrus.FieldLogger
}

var _ provider.Client = (*Client)(nil)

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, apiKey string, log logrus.FieldLogger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultHTTPTimeout,
		},
		log: logging.OrDiscard(log),
	}
}

// ErrorItem is one entry of the response ERRORARRAY.
type ErrorItem struct {
	Code    int    `json:"ERRORCODE"`
	Message string `json:"ERRORMESSAGE"`
}

// APIError is returned when the API reports errors for an action.
type APIError struct {
	Action string
	Errors []ErrorItem
}

func (e *APIError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, item := range e.Errors {
		msgs[i] = fmt.Sprintf("%s (code %d)", item.Message, item.Code)
	}
	return fmt.Sprintf("%s: %s", e.Action, strings.Join(msgs, "; "))
}

// HasCode reports whether the API returned the given error code.
func (e *APIError) HasCode(code int) bool {
	for _, item := range e.Errors {
		if item.Code == code {
			return true
		}
	}
	return false
}

type envelope struct {
	Errors []ErrorItem     `json:"ERRORARRAY"`
	Action string          `json:"ACTION"`
	Data   json.RawMessage `json:"DATA"`
}

// call performs one action and decodes DATA into out when out is non-nil.
func (c *Client) call(ctx context.Context, action string, params url.Values, out interface{}) error {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("api_key", c.apiKey)
	form.Set("api_action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.WithFields(logrus.Fields{
		"action":   action,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("api call")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s: API error (status %d): %s", action, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	if len(env.Errors) > 0 {
		return &APIError{Action: action, Errors: env.Errors}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", action, err)
	}
	return nil
}

// paramValue renders an extra request parameter. Strings are sent verbatim,
// everything else as JSON.
func paramValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func linodeParams(id provider.LinodeID) url.Values {
	v := url.Values{}
	v.Set("LinodeID", strconv.Itoa(int(id)))
	return v
}

// ListLinodes lists every linode, or only id when id is non-zero.
func (c *Client) ListLinodes(ctx context.Context, id provider.LinodeID) ([]provider.Linode, error) {
	params := url.Values{}
	if id != 0 {
		params = linodeParams(id)
	}
	var records []linodeRecord
	if err := c.call(ctx, "linode.list", params, &records); err != nil {
		return nil, err
	}
	out := make([]provider.Linode, len(records))
	for i, r := range records {
		out[i] = r.toLinode()
	}
	return out, nil
}

// Boot submits a boot job.
func (c *Client) Boot(ctx context.Context, id provider.LinodeID, configID provider.ConfigID) (provider.JobID, error) {
	params := linodeParams(id)
	if configID != 0 {
		params.Set("ConfigID", strconv.Itoa(int(configID)))
	}
	var res jobResult
	if err := c.call(ctx, "linode.boot", params, &res); err != nil {
		return 0, err
	}
	return provider.JobID(res.JobID), nil
}

// Shutdown submits a shutdown job.
func (c *Client) Shutdown(ctx context.Context, id provider.LinodeID) (provider.JobID, error) {
	var res jobResult
	if err := c.call(ctx, "linode.shutdown", linodeParams(id), &res); err != nil {
		return 0, err
	}
	return provider.JobID(res.JobID), nil
}

// ListDisks lists the disks of a linode.
func (c *Client) ListDisks(ctx context.Context, id provider.LinodeID) ([]provider.Disk, error) {
	var records []diskRecord
	if err := c.call(ctx, "linode.disk.list", linodeParams(id), &records); err != nil {
		return nil, err
	}
	out := make([]provider.Disk, len(records))
	for i, r := range records {
		out[i] = r.toDisk()
	}
	return out, nil
}

// DeleteDisk submits a disk deletion job.
func (c *Client) DeleteDisk(ctx context.Context, id provider.LinodeID, diskID provider.DiskID) (provider.JobID, error) {
	params := linodeParams(id)
	params.Set("DiskID", strconv.Itoa(int(diskID)))
	var res jobResult
	if err := c.call(ctx, "linode.disk.delete", params, &res); err != nil {
		return 0, err
	}
	return provider.JobID(res.JobID), nil
}

// CreateDisk submits a plain disk creation job.
func (c *Client) CreateDisk(ctx context.Context, id provider.LinodeID, spec provider.DiskSpec) (provider.DiskID, provider.JobID, error) {
	params := linodeParams(id)
	params.Set("Label", spec.Label)
	params.Set("Type", string(spec.Type))
	params.Set("Size", strconv.Itoa(spec.Size))
	var res jobResult
	if err := c.call(ctx, "linode.disk.create", params, &res); err != nil {
		return 0, 0, err
	}
	return provider.DiskID(res.DiskID), provider.JobID(res.JobID), nil
}

// CreateDiskFromStackScript submits a disk creation job that deploys a
// distribution and runs a StackScript on first boot.
func (c *Client) CreateDiskFromStackScript(ctx context.Context, id provider.LinodeID, spec provider.StackScriptDiskSpec) (provider.DiskID, provider.JobID, error) {
	params := linodeParams(id)
	for k, v := range spec.Params {
		value, err := paramValue(v)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to encode parameter %s: %w", k, err)
		}
		params.Set(k, value)
	}
	params.Set("StackScriptID", strconv.Itoa(int(spec.StackScriptID)))
	params.Set("DistributionID", strconv.Itoa(int(spec.DistributionID)))
	params.Set("Label", spec.Label)
	params.Set("Size", strconv.Itoa(spec.Size))
	params.Set("rootPass", spec.RootPass)
	if spec.RootSSHKey != "" {
		params.Set("rootSSHKey", spec.RootSSHKey)
	}

	udf := spec.UDFResponses
	if udf == nil {
		udf = map[string]any{}
	}
	encoded, err := json.Marshal(udf)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to encode StackScript responses: %w", err)
	}
	params.Set("StackScriptUDFResponses", string(encoded))

	var res jobResult
	if err := c.call(ctx, "linode.disk.createfromstackscript", params, &res); err != nil {
		return 0, 0, err
	}
	return provider.DiskID(res.DiskID), provider.JobID(res.JobID), nil
}

// ListDistributions lists the available distribution templates.
func (c *Client) ListDistributions(ctx context.Context) ([]provider.Distribution, error) {
	var records []distributionRecord
	if err := c.call(ctx, "avail.distributions", nil, &records); err != nil {
		return nil, err
	}
	out := make([]provider.Distribution, len(records))
	for i, r := range records {
		out[i] = r.toDistribution()
	}
	return out, nil
}

// ListKernels lists the available kernels.
func (c *Client) ListKernels(ctx context.Context) ([]provider.Kernel, error) {
	var records []kernelRecord
	if err := c.call(ctx, "avail.kernels", nil, &records); err != nil {
		return nil, err
	}
	out := make([]provider.Kernel, len(records))
	for i, r := range records {
		out[i] = r.toKernel()
	}
	return out, nil
}

// CreateConfig creates a boot config. The API answers synchronously.
func (c *Client) CreateConfig(ctx context.Context, id provider.LinodeID, spec provider.ConfigSpec) (provider.ConfigID, error) {
	params := linodeParams(id)
	params.Set("KernelID", strconv.Itoa(int(spec.KernelID)))
	params.Set("Label", spec.Label)
	params.Set("Comments", spec.Comments)
	params.Set("DiskList", formatDiskList(spec.DiskList))
	params.Set("RootDeviceNum", strconv.Itoa(spec.RootDeviceNum))
	var res configResult
	if err := c.call(ctx, "linode.config.create", params, &res); err != nil {
		return 0, err
	}
	return provider.ConfigID(res.ConfigID), nil
}

// ListConfigs lists the boot configs of a linode.
func (c *Client) ListConfigs(ctx context.Context, id provider.LinodeID) ([]provider.Config, error) {
	var records []configRecord
	if err := c.call(ctx, "linode.config.list", linodeParams(id), &records); err != nil {
		return nil, err
	}
	out := make([]provider.Config, 0, len(records))
	for _, r := range records {
		cfg, err := r.toConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// DeleteConfig deletes a boot config.
func (c *Client) DeleteConfig(ctx context.Context, id provider.LinodeID, configID provider.ConfigID) error {
	params := linodeParams(id)
	params.Set("ConfigID", strconv.Itoa(int(configID)))
	return c.call(ctx, "linode.config.delete", params, nil)
}

// ListJobs lists the jobs of a linode, pending and finished.
func (c *Client) ListJobs(ctx context.Context, id provider.LinodeID) ([]provider.Job, error) {
	var records []jobRecord
	if err := c.call(ctx, "linode.job.list", linodeParams(id), &records); err != nil {
		return nil, err
	}
	out := make([]provider.Job, 0, len(records))
	for _, r := range records {
		j, err := r.toJob()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}
