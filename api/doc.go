// 版权所有 2024 VivaGraph Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package api 定义 VivaGraph HTTP API 的请求与响应类型。

# 端点

	POST /api/v1/sessions                 开始会话（JSON 或 multipart，文件字段 document）
	POST /api/v1/sessions/{id}/answers    提交回答，answer 可为字符串或转写 JSON 对象
	POST /api/v1/sessions/{id}/end        立即结束会话
	GET  /api/v1/sessions/{id}            检查点快照与最近执行记录
	GET  /api/v1/sessions/{id}/transcript 已持久化的题目与回答（需配置数据库）
	GET  /api/v1/users/{email}/mastery    用户各主题掌握度

进行中的会话返回 {"status":"in_progress","question":...}，
结束后返回 {"status":"completed","feedback":...,"final_score":...}。
错误统一为 {"success":false,"error":{"code":...,"message":...}}。

# 鉴权

配置 server.jwt_secret 后，/api/ 下的端点需要 HS256 Bearer Token：

	Authorization: Bearer <token>
*/
package api
