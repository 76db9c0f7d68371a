// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crew

import (
	"fmt"
	"strings"

	"github.com/crewtune/crewtune/gollm"
	"github.com/crewtune/crewtune/pkg/api"
)

const (
	finalAnswerMarker = "Final Answer:"
	contextSeparator  = "\n\n----------\n\n"
)

// BuildMessages renders the system and user messages an agent sends for a
// task. taskContext is the output of earlier tasks and may be empty.
func BuildMessages(agent api.AgentConfig, task api.TaskConfig, taskContext string) []gollm.Message {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are %s. %s\n", agent.Role, agent.Backstory)
	fmt.Fprintf(&sys, "Your personal goal is: %s\n", agent.Goal)
	sys.WriteString("To give my best complete final answer to the task respond using the exact following format:\n\n")
	sys.WriteString("Thought: I now can give a great answer\n")
	sys.WriteString(finalAnswerMarker + " Your final answer must be the great and the most complete as possible, it must be outcome described.\n\n")
	sys.WriteString("I MUST use these formats, my job depends on it!")

	var user strings.Builder
	fmt.Fprintf(&user, "\nCurrent Task: %s\n\n", task.Description)
	fmt.Fprintf(&user, "This is the expected criteria for your final answer: %s\n", task.ExpectedOutput)
	user.WriteString("you MUST return the actual complete content as the final answer, not a summary.")
	if taskContext != "" {
		fmt.Fprintf(&user, "\n\nThis is the context you're working with:\n%s", taskContext)
	}
	user.WriteString("\n\nBegin! This is VERY important to you, use the tools available and give your best Final Answer, your job depends on it!\n\nThought:")

	return []gollm.Message{
		{Role: gollm.RoleSystem, Content: sys.String()},
		{Role: gollm.RoleUser, Content: user.String()},
	}
}

// ExtractFinalAnswer returns the text after the last "Final Answer:" marker,
// or the whole response when there is none.
func ExtractFinalAnswer(response string) string {
	if i := strings.LastIndex(response, finalAnswerMarker); i >= 0 {
		response = response[i+len(finalAnswerMarker):]
	}
	return strings.TrimSpace(stripFence(strings.TrimSpace(response)))
}

// stripFence removes a markdown code fence wrapping the whole answer.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	if nl := strings.Index(body, "\n"); nl >= 0 {
		return body[nl+1:]
	}
	return s
}
