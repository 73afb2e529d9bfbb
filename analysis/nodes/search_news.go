package pipelinenode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Finsight-Equity-Analysis-Pipeline/analysis/contract"
)

func SearchNews(
	ctx context.Context,
	in *GraphState,
	tools contractx.ToolGateway,
) (*GraphState, error) {
	if in == nil || in.Run == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	res, err := tools.Invoke(ctx, contractx.ToolNewsSearch, map[string]any{
		"query": newsQuery(in.Run.CompanyName, in.Run.Query),
		"limit": in.NewsLimit,
	})
	if err != nil {
		return nil, err
	}

	items, ok := res.Payload.([]contractx.NewsItem)
	if !ok {
		return nil, fmt.Errorf("%w: tool %s returned unexpected payload %T",
			contractx.ErrConfiguration, contractx.ToolNewsSearch, res.Payload)
	}

	if err := in.Run.AttachNews(items); err != nil {
		return nil, err
	}
	return in, nil
}

func newsQuery(companyName, query string) string {
	companyName = strings.TrimSpace(companyName)
	query = strings.TrimSpace(query)
	if companyName == "" {
		return query
	}
	return companyName + " " + query
}
