package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/florianilch/ihealth-mcp/internal/ihealth"
)

// CredentialsValidMessage is returned by ValidateCredentials on success.
const CredentialsValidMessage = "Success: F5 iHealth API credentials are valid and authentication successful."

// diagnosticFormats maps output_format values to Accept media types.
var diagnosticFormats = map[string]string{
	"json": ihealth.MediaTypeAPIJSON,
	"xml":  ihealth.MediaTypeAPIXML,
	"pdf":  ihealth.MediaTypePDF,
	"csv":  ihealth.MediaTypeCSV,
}

// openFile opens upload bundles; replaced in tests.
var openFile = os.Open

// Gateway performs one API request per call.
type Gateway interface {
	Do(ctx context.Context, req *ihealth.Request) *ihealth.Response
}

// TokenSource is checked by ValidateCredentials.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Result is the text handed back to the tool host.
type Result struct {
	Text    string
	IsError bool
}

// Service implements every tool. Tools never fail with a Go error; all
// failures are reported through Result.
type Service struct {
	gateway Gateway
	tokens  TokenSource
}

// NewService creates a Service.
func NewService(gateway Gateway, tokens TokenSource) (*Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("missing gateway")
	}
	if tokens == nil {
		return nil, fmt.Errorf("missing token source")
	}
	return &Service{gateway: gateway, tokens: tokens}, nil
}

// NoInput is the argument set of tools without parameters.
type NoInput struct{}

// QKViewInput identifies one QKView.
type QKViewInput struct {
	QKViewID string `json:"qkview_id,omitempty" jsonschema:"ID of the QKView"`
}

// UploadInput holds the upload_qkview arguments.
type UploadInput struct {
	FilePath           string `json:"file_path,omitempty" jsonschema:"Local path of the QKView file to upload"`
	Description        string `json:"description,omitempty" jsonschema:"Free-text description"`
	VisibleInGUI       string `json:"visible_in_gui,omitempty" jsonschema:"Whether the QKView is visible in the iHealth GUI (true or false, default true)"`
	F5SupportCase      string `json:"f5_support_case,omitempty" jsonschema:"F5 support case number to associate"`
	ShareWithCaseOwner string `json:"share_with_case_owner,omitempty" jsonschema:"Share with the support case owner (true or false, default false)"`
}

// UpdateMetadataInput holds the update_qkview_metadata arguments.
type UpdateMetadataInput struct {
	QKViewID      string `json:"qkview_id,omitempty" jsonschema:"ID of the QKView"`
	Description   string `json:"description,omitempty" jsonschema:"New description"`
	VisibleInGUI  string `json:"visible_in_gui,omitempty" jsonschema:"Visibility in the iHealth GUI (true or false)"`
	F5SupportCase string `json:"f5_support_case,omitempty" jsonschema:"F5 support case number"`
	NonF5Case     string `json:"non_f5_case,omitempty" jsonschema:"Non-F5 case reference"`
}

// DiagnosticsInput holds the get_qkview_diagnostics arguments.
type DiagnosticsInput struct {
	QKViewID      string `json:"qkview_id,omitempty" jsonschema:"ID of the QKView"`
	DiagnosticSet string `json:"diagnostic_set,omitempty" jsonschema:"hit for issues found, miss for passed checks, empty for all"`
	OutputFormat  string `json:"output_format,omitempty" jsonschema:"json (default), xml, pdf or csv"`
}

// FileInput addresses one file inside a QKView.
type FileInput struct {
	QKViewID string `json:"qkview_id,omitempty" jsonschema:"ID of the QKView"`
	FileHash string `json:"file_hash,omitempty" jsonschema:"Hash of the file, or qkview for the original upload"`
}

// CommandInput addresses one captured command output.
type CommandInput struct {
	QKViewID    string `json:"qkview_id,omitempty" jsonschema:"ID of the QKView"`
	CommandName string `json:"command_name,omitempty" jsonschema:"Name of the tmsh command"`
}

// SlotInput addresses one BIG-IP slot.
type SlotInput struct {
	QKViewID   string `json:"qkview_id,omitempty" jsonschema:"ID of the QKView"`
	SlotNumber string `json:"slot_number,omitempty" jsonschema:"Slot number, 0 for appliances (default 0)"`
}

// LogSearchInput holds the search_qkview_logs arguments.
type LogSearchInput struct {
	QKViewID   string `json:"qkview_id,omitempty" jsonschema:"ID of the QKView"`
	SearchTerm string `json:"search_term,omitempty" jsonschema:"Term to search for in the QKView log files"`
}

// ListQKViews lists all QKView IDs in the account.
func (s *Service) ListQKViews(ctx context.Context, _ NoInput) Result {
	loggerFrom(ctx).InfoContext(ctx, "listing all qkviews")
	return s.call(ctx, &ihealth.Request{Method: http.MethodGet, Path: "/qkviews"})
}

// UploadQKView uploads a local QKView file.
func (s *Service) UploadQKView(ctx context.Context, in UploadInput) Result {
	if err := required(param{"file_path", in.FilePath}); err != nil {
		return failed(err)
	}
	if _, err := os.Stat(in.FilePath); errors.Is(err, os.ErrNotExist) {
		return failed(&ihealth.ValidationError{Param: "file_path", Message: "File not found: " + in.FilePath})
	}

	logger := loggerFrom(ctx)
	logger.InfoContext(ctx, "uploading qkview", "file_path", in.FilePath)

	file, err := openFile(in.FilePath)
	if err != nil {
		logger.ErrorContext(ctx, "upload failed", "error", err)
		return Result{Text: "Error uploading QKView: " + err.Error(), IsError: true}
	}
	defer func() { _ = file.Close() }()

	form := url.Values{}
	setIfPresent(form, "description", in.Description)
	setIfPresent(form, "visible_in_gui", defaultString(in.VisibleInGUI, "true"))
	setIfPresent(form, "f5_support_case", in.F5SupportCase)
	setIfPresent(form, "share_with_case_owner", defaultString(in.ShareWithCaseOwner, "false"))

	return s.call(ctx, &ihealth.Request{
		Method: http.MethodPost,
		Path:   "/qkviews",
		Form:   form,
		File: &ihealth.File{
			Field:   "qkview",
			Name:    filepath.Base(in.FilePath),
			Content: file,
		},
	})
}

// DeleteQKView deletes one QKView.
func (s *Service) DeleteQKView(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "deleting qkview", "qkview_id", in.QKViewID)
	return s.qkviewCall(ctx, http.MethodDelete, "", in.QKViewID)
}

// DeleteAllQKViews deletes every QKView in the account.
func (s *Service) DeleteAllQKViews(ctx context.Context, _ NoInput) Result {
	loggerFrom(ctx).WarnContext(ctx, "deleting ALL qkviews from account")
	return s.call(ctx, &ihealth.Request{Method: http.MethodDelete, Path: "/qkviews"})
}

// GetQKViewMetadata returns the metadata of one QKView.
func (s *Service) GetQKViewMetadata(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "getting qkview metadata", "qkview_id", in.QKViewID)
	return s.qkviewCall(ctx, http.MethodGet, "", in.QKViewID)
}

// UpdateQKViewMetadata updates the provided metadata fields of one QKView.
func (s *Service) UpdateQKViewMetadata(ctx context.Context, in UpdateMetadataInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}

	form := url.Values{}
	setIfPresent(form, "description", in.Description)
	setIfPresent(form, "visible_in_gui", in.VisibleInGUI)
	setIfPresent(form, "f5_support_case", in.F5SupportCase)
	setIfPresent(form, "non_f5_case", in.NonF5Case)
	if len(form) == 0 {
		return failed(&ihealth.ValidationError{Message: "At least one metadata field must be provided to update"})
	}

	loggerFrom(ctx).InfoContext(ctx, "updating qkview metadata", "qkview_id", in.QKViewID)

	path, err := qkviewPath(in.QKViewID)
	if err != nil {
		return failed(invalidParam("qkview_id", err))
	}
	return s.call(ctx, &ihealth.Request{Method: http.MethodPut, Path: path, Form: form})
}

// GetQKViewDiagnostics returns diagnostics in the requested format, optionally
// restricted to hits or misses.
func (s *Service) GetQKViewDiagnostics(ctx context.Context, in DiagnosticsInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}

	outputFormat := defaultString(in.OutputFormat, "json")
	accept, ok := diagnosticFormats[strings.ToLower(outputFormat)]
	if !ok {
		accept = ihealth.MediaTypeAPIJSON
	}

	loggerFrom(ctx).InfoContext(ctx, "getting qkview diagnostics",
		"qkview_id", in.QKViewID,
		"set", in.DiagnosticSet,
		"format", outputFormat,
	)
	return s.diagnostics(ctx, in.QKViewID, in.DiagnosticSet, accept)
}

// GetDiagnosticsHits returns only failed checks.
func (s *Service) GetDiagnosticsHits(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "getting diagnostic hits", "qkview_id", in.QKViewID)
	return s.diagnostics(ctx, in.QKViewID, "hit", "")
}

// GetDiagnosticsMisses returns only passed checks.
func (s *Service) GetDiagnosticsMisses(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "getting diagnostic misses", "qkview_id", in.QKViewID)
	return s.diagnostics(ctx, in.QKViewID, "miss", "")
}

// ListQKViewFiles lists the files contained in a QKView.
func (s *Service) ListQKViewFiles(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "listing qkview files", "qkview_id", in.QKViewID)
	return s.qkviewCall(ctx, http.MethodGet, "", in.QKViewID, "files")
}

// GetQKViewFile downloads one file by hash. Only its size is reported.
func (s *Service) GetQKViewFile(ctx context.Context, in FileInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}, param{"file_hash", in.FileHash}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "getting qkview file", "qkview_id", in.QKViewID, "file_hash", in.FileHash)
	return s.file(ctx, in.QKViewID, in.FileHash)
}

// DownloadOriginalQKView downloads the uploaded bundle. Only its size is reported.
func (s *Service) DownloadOriginalQKView(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "downloading original qkview", "qkview_id", in.QKViewID)
	return s.file(ctx, in.QKViewID, OriginalQKViewHash)
}

// ListAvailableCommands lists the tmsh commands captured in a QKView.
func (s *Service) ListAvailableCommands(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "listing available commands", "qkview_id", in.QKViewID)
	return s.qkviewCall(ctx, http.MethodGet, "", in.QKViewID, "commands")
}

// GetCommandOutput returns the captured output of one tmsh command.
func (s *Service) GetCommandOutput(ctx context.Context, in CommandInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}, param{"command_name", in.CommandName}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "getting command output", "qkview_id", in.QKViewID, "command", in.CommandName)

	command, err := pathParam("command_name", in.CommandName)
	if err != nil {
		return failed(invalidParam("command_name", err))
	}
	return s.qkviewCall(ctx, http.MethodGet, "", in.QKViewID, "commands", command)
}

// GetBigIPInfo returns general BIG-IP information.
func (s *Service) GetBigIPInfo(ctx context.Context, in QKViewInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "getting bigip info", "qkview_id", in.QKViewID)
	return s.qkviewCall(ctx, http.MethodGet, "", in.QKViewID, "bigip")
}

// GetBigIPSlotInfo returns BIG-IP information for one slot.
func (s *Service) GetBigIPSlotInfo(ctx context.Context, in SlotInput) Result {
	return s.slot(ctx, in, "")
}

// GetHardwareInfo returns hardware information for one slot.
func (s *Service) GetHardwareInfo(ctx context.Context, in SlotInput) Result {
	return s.slot(ctx, in, "hardware")
}

// GetSoftwareInfo returns software version information for one slot.
func (s *Service) GetSoftwareInfo(ctx context.Context, in SlotInput) Result {
	return s.slot(ctx, in, "software")
}

// GetLicenseInfo returns licensing information for one slot.
func (s *Service) GetLicenseInfo(ctx context.Context, in SlotInput) Result {
	return s.slot(ctx, in, "license")
}

// GetAPIInfo returns the API version and operating parameters.
func (s *Service) GetAPIInfo(ctx context.Context, _ NoInput) Result {
	loggerFrom(ctx).InfoContext(ctx, "getting api info")
	return s.call(ctx, &ihealth.Request{Method: http.MethodGet, Path: "/"})
}

// SearchQKViewLogs searches the QKView log files for a term.
func (s *Service) SearchQKViewLogs(ctx context.Context, in LogSearchInput) Result {
	if err := required(param{"qkview_id", in.QKViewID}, param{"search_term", in.SearchTerm}); err != nil {
		return failed(err)
	}
	loggerFrom(ctx).InfoContext(ctx, "searching qkview logs", "qkview_id", in.QKViewID, "search_term", in.SearchTerm)

	path, err := qkviewPath(in.QKViewID, "logs")
	if err != nil {
		return failed(invalidParam("qkview_id", err))
	}
	path, err = withQuery(path, "search", in.SearchTerm)
	if err != nil {
		return failed(invalidParam("search_term", err))
	}
	return s.call(ctx, &ihealth.Request{Method: http.MethodGet, Path: path})
}

// ValidateCredentials checks that credentials are configured and accepted by
// the identity provider.
func (s *Service) ValidateCredentials(ctx context.Context, _ NoInput) Result {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		loggerFrom(ctx).WarnContext(ctx, "credential validation failed", "error", err)
		return Result{Text: "Error: " + err.Error(), IsError: true}
	}
	if token == "" {
		return Result{Text: "Error: Failed to obtain auth token", IsError: true}
	}
	return Result{Text: CredentialsValidMessage}
}

func (s *Service) diagnostics(ctx context.Context, id, set, accept string) Result {
	path, err := qkviewPath(id, "diagnostics")
	if err != nil {
		return failed(invalidParam("qkview_id", err))
	}
	if set == "hit" || set == "miss" {
		path, err = withQuery(path, "set", set)
		if err != nil {
			return failed(invalidParam("diagnostic_set", err))
		}
	}
	return s.call(ctx, &ihealth.Request{Method: http.MethodGet, Path: path, Accept: accept})
}

func (s *Service) file(ctx context.Context, id, hash string) Result {
	escaped, err := pathParam("file_hash", hash)
	if err != nil {
		return failed(invalidParam("file_hash", err))
	}
	return s.qkviewCall(ctx, http.MethodGet, ihealth.MediaTypeOctetStream, id, "files", escaped)
}

func (s *Service) slot(ctx context.Context, in SlotInput, section string) Result {
	if err := required(param{"qkview_id", in.QKViewID}); err != nil {
		return failed(err)
	}
	slotNumber := defaultString(in.SlotNumber, "0")

	logger := loggerFrom(ctx)
	logger.InfoContext(ctx, "getting bigip slot data", "qkview_id", in.QKViewID, "slot", slotNumber, "section", section)

	slot, err := pathParam("slot_number", slotNumber)
	if err != nil {
		return failed(invalidParam("slot_number", err))
	}
	segments := []string{"bigip", slot}
	if section != "" {
		segments = append(segments, section)
	}
	return s.qkviewCall(ctx, http.MethodGet, "", in.QKViewID, segments...)
}

// qkviewCall issues method against /qkviews/{id}/segments...
func (s *Service) qkviewCall(ctx context.Context, method, accept, id string, segments ...string) Result {
	path, err := qkviewPath(id, segments...)
	if err != nil {
		return failed(invalidParam("qkview_id", err))
	}
	return s.call(ctx, &ihealth.Request{Method: method, Path: path, Accept: accept})
}

func (s *Service) call(ctx context.Context, req *ihealth.Request) Result {
	return fromResponse(s.gateway.Do(ctx, req))
}

// fromResponse is the single conversion from a normalized response to text.
func fromResponse(resp *ihealth.Response) Result {
	return Result{
		Text:    ihealth.Format(resp),
		IsError: resp == nil || resp.IsError(),
	}
}

func failed(err error) Result {
	return fromResponse(ihealth.ErrorResponse(err))
}

type param struct {
	name  string
	value string
}

// required returns a ValidationError for the first empty parameter.
func required(params ...param) error {
	for _, p := range params {
		if p.value == "" {
			return ihealth.RequiredParam(p.name)
		}
	}
	return nil
}

func invalidParam(name string, err error) error {
	return &ihealth.ValidationError{Param: name, Message: fmt.Sprintf("invalid %s: %v", name, err)}
}

func setIfPresent(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
