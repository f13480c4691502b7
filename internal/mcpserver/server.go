// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes FlexiBoard tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/flexiboard/internal/boardservice"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

const boardFormatURI = "flexiboard://board-format"

// Option configures a Server.
type Option func(*Server)

// WithActingUser makes tool calls act as userID instead of the system actor.
func WithActingUser(userID string) Option {
	return func(s *Server) { s.userID = userID }
}

// Server wraps the MCP server with FlexiBoard tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *boardservice.Service
	userID string
}

// New creates a new MCP server with all FlexiBoard tools registered.
func New(svc *boardservice.Service, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, o := range opts {
		o(s)
	}

	s.mcp = server.NewMCPServer(
		"FlexiBoard",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_boards",
		mcp.WithDescription("List boards. Without workspace_id, boards of every visible workspace are returned."),
		mcp.WithString("workspace_id", mcp.Description("Optional workspace id")),
	), s.listBoards)

	s.mcp.AddTool(mcp.NewTool("get_board",
		mcp.WithDescription("Read a full board document: columns, groups, items, views and automations."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
	), s.getBoard)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Search item text. With board_id the search covers one board, otherwise a workspace."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("board_id", mcp.Description("Restrict to one board")),
		mcp.WithString("workspace_id", mcp.Description("Workspace to search when board_id is empty")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create an item on a board. Data is keyed by column id and MUST follow "+
			"the board format contract. Read it first via get_board_contract or the "+
			boardFormatURI+" resource. Item-created automations run."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Cell values keyed by column id")),
		mcp.WithString("group_id", mcp.Description("Optional group id")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("update_item",
		mcp.WithDescription("Change cell values of an item. Status and column change automations run."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Cell values keyed by column id")),
	), s.updateItem)

	s.mcp.AddTool(mcp.NewTool("list_automations",
		mcp.WithDescription("List the automation rules of a board."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
	), s.listAutomations)

	s.mcp.AddTool(mcp.NewTool("render_view",
		mcp.WithDescription("Render a board as kanban, table, calendar, timeline, gantt or dashboard data."),
		mcp.WithString("board_id", mcp.Required(), mcp.Description("Board id")),
		mcp.WithString("view_type", mcp.Required(), mcp.Description("View type")),
		mcp.WithString("view_id", mcp.Description("Saved view supplying filters and sorts")),
		mcp.WithString("group_by", mcp.Description("Column id to group by")),
	), s.renderView)

	s.mcp.AddTool(mcp.NewTool("get_board_contract",
		mcp.WithDescription("Returns the FlexiBoard board format contract. "+
			"Call this before creating or updating items to ensure correct cell values."),
	), s.getBoardContract)

	s.mcp.AddResource(
		mcp.NewResource(boardFormatURI, "Board Format Contract",
			mcp.WithResourceDescription("Board document, column and automation format."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBoardFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func objectArg(req mcp.CallToolRequest, name string) (map[string]any, error) {
	m, ok := req.GetArguments()[name].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("required argument %q must be an object", name)
	}
	return m, nil
}

func (s *Server) listBoards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wsID := req.GetString("workspace_id", "")
	if wsID != "" {
		list, err := s.svc.ListBoards(ctx, s.userID, wsID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(list)
	}
	workspaces, err := s.svc.ListWorkspaces(ctx, s.userID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	all := []models.BoardSummary{}
	for _, ws := range workspaces {
		list, err := s.svc.ListBoards(ctx, s.userID, ws.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		all = append(all, list...)
	}
	return jsonResult(all)
}

func (s *Server) getBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetBoard(ctx, s.userID, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(d)
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if boardID := req.GetString("board_id", ""); boardID != "" {
		items, err := s.svc.SearchBoard(ctx, s.userID, boardID, query)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(items)
	}
	hits, err := s.svc.Search(ctx, s.userID, req.GetString("workspace_id", ""), query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardID, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := objectArg(req, "data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.CreateItem(ctx, s.userID, boardID, "", flexiboard.NewItem{
		Data:      data,
		GroupID:   req.GetString("group_id", ""),
		CreatedBy: s.userID,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"item": res.Item, "automations": res.Automations})
}

func (s *Server) updateItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardID, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := objectArg(req, "data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.UpdateItem(ctx, s.userID, boardID, itemID, "", flexiboard.ItemPatch{Data: data})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"item": res.Item, "automations": res.Automations})
}

func (s *Server) listAutomations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardID, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	list, err := s.svc.ListAutomations(ctx, s.userID, boardID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(list)
}

func (s *Server) renderView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardID, err := req.RequireString("board_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	viewType, err := req.RequireString("view_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.RenderView(ctx, s.userID, boardID, models.ViewType(viewType), flexiboard.RenderOptions{
		ViewID:  req.GetString("view_id", ""),
		GroupBy: req.GetString("group_by", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (s *Server) getBoardContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BoardFormatContract), nil
}

func (s *Server) readBoardFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      boardFormatURI,
			MIMEType: "text/markdown",
			Text:     BoardFormatContract,
		},
	}, nil
}
