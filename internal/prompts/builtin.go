package prompts

const sqlUserTemplate = `
<name>
{{range .Tables}}the name of the table is ` + "`{{.Name}}`" + ` .
{{end}}</name>

<Question>
{{.Question}}
</Question>

<Context>
{{range .Tables}}{{.Name}}: {{.Document}}
{{end}}</Context>
`

var builtin = map[string]Definition{
	"en": {
		Intent: `Analyze the user's question and decide the following two things. Return them as a JSON object:
1. "visualization_needed": whether the user wants a data visualization such as a graph or chart (true/false)
2. "chart_type": if a visualization is needed, the most suitable chart type ("bar", "line", "pie", "scatter", "table"). Otherwise "none".

Question: "{{.Question}}"

JSON output:`,

		SQLSystem: `You are an expert SQL generator for {{.Dialect}}.

You will be given:
1. A natural language query from the user.
2. A context object where each key is a table name and its value is text that includes:
   - A <Description> ... </Description> block: short natural language description of the table.
   - A <DDL> ... </DDL> block: the schema of that table, with column names, data types, and constraints.

Your task:
- Generate a valid SQL query that answers the natural language query.
- Use only the provided tables and columns. Join other tables only when the context names them.
- Do not invent tables or columns that are not in the context.
- Return only the SQL query, nothing else.`,

		SQLUser: sqlUserTemplate,

		Answer: `Given the user's question, the generated SQL query, and the SQL result, provide a comprehensive answer in two parts:
1. A natural language response in English that directly answers the question.
2. If the user asked for a visualization, the data for the chart as a list of flat objects, where each object is one data point.

Question: {{.Question}}
SQL Query: {{.SQL}}
SQL Result: {{.Result}}
User Intent: {{.Intent}}

Respond with a single JSON object with two keys: "natural_language_response" and "chart_data".
- "natural_language_response": your natural language answer
- "chart_data": the chart data, or an empty list [] if no chart is needed`,
	},

	"ko": {
		Intent: `사용자의 질문을 분석하여 다음 두 가지를 판단해 JSON 형식으로 반환하세요:
1. "visualization_needed": 사용자가 데이터 시각화(그래프, 차트 등)를 원하는지 여부 (true/false)
2. "chart_type": 시각화가 필요하다면, 어떤 종류의 차트가 가장 적합할지 추천 ("bar", "line", "pie", "scatter", "table"). 필요 없다면 "none".

질문: "{{.Question}}"

JSON 출력:`,

		SQLSystem: `당신은 {{.Dialect}} 전문 SQL 생성기입니다.

다음이 주어집니다:
1. 사용자의 자연어 질문.
2. 각 키가 테이블 이름이고 값이 다음을 포함하는 컨텍스트:
   - <Description> ... </Description> 블록: 테이블에 대한 짧은 설명.
   - <DDL> ... </DDL> 블록: 컬럼 이름, 데이터 타입, 제약 조건이 포함된 테이블 스키마.

작업:
- 질문에 답하는 유효한 SQL 쿼리를 생성하세요.
- 제공된 테이블과 컬럼만 사용하세요.
- 컨텍스트에 없는 테이블이나 컬럼을 만들어내지 마세요.
- SQL 쿼리만 반환하고 다른 내용은 쓰지 마세요.`,

		SQLUser: sqlUserTemplate,

		Answer: `사용자의 질문, 생성된 SQL 쿼리, SQL 실행 결과를 바탕으로 두 부분으로 답변하세요:
1. 질문에 직접 답하는 한국어 자연어 답변.
2. 사용자가 시각화를 원한다면, 각 객체가 하나의 데이터 포인트인 평면 객체 목록 형태의 차트 데이터.

Question: {{.Question}}
SQL Query: {{.SQL}}
SQL Result: {{.Result}}
User Intent: {{.Intent}}

"natural_language_response"와 "chart_data" 두 키를 가진 하나의 JSON 객체로만 응답하세요.
- "natural_language_response": 자연어 답변
- "chart_data": 차트 데이터, 차트가 필요 없으면 빈 리스트 []`,
	},
}
