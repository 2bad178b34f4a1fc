// internal/request/workflow.go
package request

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
)

// Chooser picks one of the generated request options. It returns the index
// of the chosen option, or an error to abort the workflow.
type Chooser func(options schemas.RequestOptions) (int, error)

// ChooseFirst is the non-interactive default. The generator lists its
// strongest option first.
func ChooseFirst(options schemas.RequestOptions) (int, error) {
	if len(options.Options) == 0 {
		return 0, fmt.Errorf("no request options to choose from")
	}
	return 0, nil
}

// WorkflowReport captures every stage of a submission run so callers can
// persist it alongside the browser artifacts.
type WorkflowReport struct {
	Topic          string                    `json:"topic"`
	Success        bool                      `json:"success"`
	StepsCompleted []string                  `json:"steps_completed"`
	Errors         []string                  `json:"errors,omitempty"`
	Options        *schemas.RequestOptions   `json:"generated_options,omitempty"`
	Chosen         *schemas.RequestOption    `json:"selected_option,omitempty"`
	Letter         string                    `json:"request_text,omitempty"`
	FillMethod     string                    `json:"filling_method,omitempty"`
	Submission     *schemas.SubmissionResult `json:"submission_result,omitempty"`
}

// Workflow runs the full request pipeline against an authenticated session:
// draft options, render the chosen one into a letter, open the form, fill
// it and submit.
type Workflow struct {
	cfg       config.Interface
	generator *Generator
	submitter *Submitter
	chooser   Chooser
	logger    *zap.Logger
}

// NewWorkflow wires the generator and submitter together. A nil chooser
// selects the first generated option.
func NewWorkflow(cfg config.Interface, llm schemas.LLMClient, b Browser, chooser Chooser, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chooser == nil {
		chooser = ChooseFirst
	}
	return &Workflow{
		cfg:       cfg,
		generator: NewGenerator(llm, cfg.Request().Options, logger),
		submitter: NewSubmitter(cfg, b, logger),
		chooser:   chooser,
		logger:    logger.Named("request_workflow"),
	}
}

// Run executes the workflow for a topic. The report is always returned,
// including on failure, so the caller can see how far the run got.
func (w *Workflow) Run(ctx context.Context, topic string) (*WorkflowReport, error) {
	report := &WorkflowReport{Topic: topic}

	w.logger.Info("Generating request options.", zap.String("topic", topic))
	options, err := w.generator.GenerateOptions(ctx, topic)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("failed to generate request options: %w", err)
	}
	report.Options = &options
	report.StepsCompleted = append(report.StepsCompleted, "option generation")

	idx, err := w.chooser(options)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("no request option selected: %w", err)
	}
	if idx < 0 || idx >= len(options.Options) {
		err := fmt.Errorf("option index %d out of range (have %d options)", idx, len(options.Options))
		report.Errors = append(report.Errors, err.Error())
		return report, err
	}
	chosen := options.Options[idx]
	report.Chosen = &chosen
	report.StepsCompleted = append(report.StepsCompleted, "option selection")
	w.logger.Info("Selected request option.", zap.String("title", chosen.Title))

	contact := w.contactInfo()
	report.Letter = RenderLetter(chosen, contact)
	report.StepsCompleted = append(report.StepsCompleted, "letter rendering")

	if err := w.submitter.NavigateToForm(ctx); err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("failed to open the request form: %w", err)
	}
	report.StepsCompleted = append(report.StepsCompleted, "form navigation")

	method, err := w.submitter.FillDescription(ctx, report.Letter)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("failed to fill the request description: %w", err)
	}
	report.FillMethod = method
	report.StepsCompleted = append(report.StepsCompleted, fmt.Sprintf("request description (%s)", method))

	filled, skipped := w.submitter.FillContact(ctx, contact)
	if filled+skipped > 0 {
		report.StepsCompleted = append(report.StepsCompleted,
			fmt.Sprintf("contact information (%d filled, %d pre-filled)", filled, skipped))
	}

	result, err := w.submitter.Submit(ctx)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, fmt.Errorf("failed to submit the request form: %w", err)
	}
	report.Submission = &result
	report.StepsCompleted = append(report.StepsCompleted, "form submission")
	report.Success = true

	w.logger.Info("Request submitted.",
		zap.String("confirmation", result.Confirmation),
		zap.String("url", result.URL))
	return report, nil
}

// contactInfo assembles the requester's contact block, falling back to the
// portal account email when no separate request email is configured.
func (w *Workflow) contactInfo() schemas.ContactInfo {
	rc := w.cfg.Request()
	email := rc.Email
	if email == "" {
		email = w.cfg.Portal().Email
	}
	return schemas.ContactInfo{
		Name:    rc.Name,
		Email:   email,
		Phone:   rc.Phone,
		Address: rc.Address,
	}
}
