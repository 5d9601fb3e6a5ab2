package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RegisterBuiltins registers the research pipeline tool set with canned,
// deterministic outputs. Each is a stand-in for a production integration
// (arXiv search, an LLM ideation service, an experiment runner) that
// satisfies the same contract.
func RegisterBuiltins(r *Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	builtins := []Tool{
		searchPapers{logger},
		generateIdeas{logger},
		refineIdeas{logger},
		runExperiment{logger},
		collectResults{logger},
		compileWriteup{logger},
		reviewer{logger},
	}
	for _, tool := range builtins {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func stringInput(inputs map[string]any, key string) string {
	if v, ok := inputs[key].(string); ok {
		return v
	}
	return ""
}

type searchPapers struct{ logger *zap.Logger }

func (t searchPapers) Name() string { return "search_papers" }

func (t searchPapers) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	query := stringInput(inputs, "query")
	t.logger.Info("searching papers", zap.String("query", query))

	papers := make([]map[string]any, 0, 3)
	for i := 0; i < 3; i++ {
		papers = append(papers, map[string]any{
			"title":    fmt.Sprintf("Research Paper on %s #%d", query, i+1),
			"authors":  []string{"Author A", "Author B"},
			"abstract": fmt.Sprintf("This paper explores %s from a novel perspective.", query),
			"url":      fmt.Sprintf("https://arxiv.org/abs/mock%d", i),
			"year":     2024,
		})
	}
	return map[string]any{"papers": papers, "count": len(papers)}, nil
}

type generateIdeas struct{ logger *zap.Logger }

func (t generateIdeas) Name() string { return "generate_ideas" }

func (t generateIdeas) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	topic := stringInput(inputs, "topic")
	t.logger.Info("generating ideas", zap.String("topic", topic))

	ideas := []string{
		fmt.Sprintf("Apply %s to low-resource settings", topic),
		fmt.Sprintf("Benchmark %s against classical baselines", topic),
		fmt.Sprintf("Study failure modes of %s under distribution shift", topic),
	}
	return map[string]any{"ideas": ideas, "count": len(ideas)}, nil
}

type refineIdeas struct{ logger *zap.Logger }

func (t refineIdeas) Name() string { return "refine_ideas" }

func (t refineIdeas) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	raw, _ := inputs["ideas"].([]any)
	t.logger.Info("refining ideas", zap.Int("count", len(raw)))

	refined := make([]string, 0, len(raw))
	for _, idea := range raw {
		if s, ok := idea.(string); ok {
			refined = append(refined, "refined: "+s)
		}
	}
	return map[string]any{"ideas": refined, "count": len(refined)}, nil
}

type runExperiment struct{ logger *zap.Logger }

func (t runExperiment) Name() string { return "run_experiment" }

func (t runExperiment) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	id := stringInput(inputs, "experiment_id")
	t.logger.Info("running experiment", zap.String("experiment_id", id))

	return map[string]any{
		"experiment_id": id,
		"status":        "completed",
		"metrics":       map[string]any{"accuracy": 0.87, "loss": 0.31},
	}, nil
}

type collectResults struct{ logger *zap.Logger }

func (t collectResults) Name() string { return "collect_results" }

func (t collectResults) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	ids, _ := inputs["experiment_ids"].([]any)
	t.logger.Info("collecting results", zap.Int("experiments", len(ids)))

	results := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		results = append(results, map[string]any{
			"experiment_id": fmt.Sprintf("%v", id),
			"status":        "completed",
		})
	}
	return map[string]any{"results": results, "count": len(results)}, nil
}

type compileWriteup struct{ logger *zap.Logger }

func (t compileWriteup) Name() string { return "compile_writeup" }

func (t compileWriteup) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	title := stringInput(inputs, "title")
	if title == "" {
		title = "Report"
	}
	t.logger.Info("compiling writeup", zap.String("title", title))

	sections := []string{"Abstract", "Introduction", "Method", "Results", "Conclusion"}
	return map[string]any{
		"title":    title,
		"content":  fmt.Sprintf("# %s\n\n%s", title, strings.Join(sections, "\n\n")),
		"sections": sections,
	}, nil
}

type reviewer struct{ logger *zap.Logger }

func (t reviewer) Name() string { return "reviewer" }

func (t reviewer) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	reviewType := stringInput(inputs, "review_type")
	if reviewType == "" {
		reviewType = "general"
	}
	t.logger.Info("reviewing", zap.String("review_type", reviewType))

	return map[string]any{
		"review_type": reviewType,
		"verdict":     "accept_with_revisions",
		"comments": []string{
			"Clarify the experimental setup.",
			"Add a limitations section.",
		},
	}, nil
}
